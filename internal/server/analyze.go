package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/umeshinduranga/revit/backend/internal/analyzer"
)

type analyzePayload struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// handleAnalyze runs the heuristic analyzer over submitted source. It is
// open to anonymous callers; only the allowance differs from the rest of
// the API surface.
func (h *httpHandler) handleAnalyze(c *gin.Context) {
	var payload analyzePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	report, err := analyzer.Analyze(payload.Code)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, analyzer.ErrEmptySource):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Code is required"})
	case errors.Is(err, analyzer.ErrSourceTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Code exceeds the 1MB limit"})
	default:
		h.logger.Error("analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Analysis failed"})
	}
}
