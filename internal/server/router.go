package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/umeshinduranga/revit/backend/internal/auth"
	"github.com/umeshinduranga/revit/backend/internal/config"
	"github.com/umeshinduranga/revit/backend/internal/githubapi"
	"github.com/umeshinduranga/revit/backend/internal/ratelimit"
	"github.com/umeshinduranga/revit/backend/internal/users"
)

const (
	sessionClaimsContextKey = "revit_session_claims"
	stateCookieName         = "revit_oauth_state"
	stateCookieMaxAge       = 300
)

var (
	errMissingOAuth    = errors.New("oauth exchanger dependency required")
	errMissingTokens   = errors.New("token issuer dependency required")
	errMissingSessions = errors.New("session validator dependency required")
	errMissingUsers    = errors.New("identity store dependency required")
	errMissingGitHub   = errors.New("github proxy dependency required")
	errMissingGateway  = errors.New("collab gateway dependency required")
)

// OAuthExchanger mirrors auth.GitHubOAuth.
type OAuthExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.GitHubUser, error)
}

// SessionIssuer mirrors auth.TokenIssuer.
type SessionIssuer interface {
	IssueSessionToken(ctx context.Context, user auth.GitHubUser) (string, time.Time, error)
}

// SessionResolver mirrors auth.SessionValidator.
type SessionResolver interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// IdentityStore mirrors users.Service.
type IdentityStore interface {
	Upsert(user auth.GitHubUser) (users.Identity, error)
	AccessTokenFor(githubID string) (string, error)
}

// RepositoryProxy mirrors githubapi.Client.
type RepositoryProxy interface {
	ListRepositories(ctx context.Context, accessToken string) ([]githubapi.Repository, error)
	ListContents(ctx context.Context, accessToken, owner, repo, path, ref string) ([]githubapi.ContentEntry, error)
	GetFile(ctx context.Context, accessToken, owner, repo, path, ref string) (githubapi.FileContent, error)
	CreateBranch(ctx context.Context, accessToken, owner, repo, base, branch string) (githubapi.BranchRef, error)
	PushFile(ctx context.Context, accessToken, owner, repo, branch, path, message, content string) (githubapi.PushResult, error)
}

// RealtimeGateway mirrors collab.Gateway.
type RealtimeGateway interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Limiters carries one limiter per throttling tier. Nil fields get the
// default allowance for their tier.
type Limiters struct {
	API      *ratelimit.Limiter
	Auth     *ratelimit.Limiter
	Analysis *ratelimit.Limiter
}

func (l Limiters) withDefaults() Limiters {
	if l.API == nil {
		l.API = ratelimit.NewLimiter(ratelimit.TierAPI, nil)
	}
	if l.Auth == nil {
		l.Auth = ratelimit.NewLimiter(ratelimit.TierAuth, nil)
	}
	if l.Analysis == nil {
		l.Analysis = ratelimit.NewLimiter(ratelimit.TierAnalysis, nil)
	}
	return l
}

type Dependencies struct {
	Config   config.AppConfig
	OAuth    OAuthExchanger
	Tokens   SessionIssuer
	Sessions SessionResolver
	Users    IdentityStore
	GitHub   RepositoryProxy
	Realtime RealtimeGateway
	Limiters Limiters
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.OAuth == nil {
		return nil, errMissingOAuth
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Users == nil {
		return nil, errMissingUsers
	}
	if deps.GitHub == nil {
		return nil, errMissingGitHub
	}
	if deps.Realtime == nil {
		return nil, errMissingGateway
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiters := deps.Limiters.withDefaults()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{deps.Config.FrontendOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		config:   deps.Config,
		oauth:    deps.OAuth,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		users:    deps.Users,
		github:   deps.GitHub,
		logger:   logger,
	}

	router.GET("/", handler.handleHealth)
	router.GET("/ws", gin.WrapF(deps.Realtime.ServeWS))

	authFlow := router.Group("/")
	authFlow.Use(limiters.Auth.Middleware())
	authFlow.GET("/auth/github", handler.handleAuthStart)
	authFlow.GET("/auth/github/callback", handler.handleAuthCallback)

	router.GET("/logout", handler.handleLogout)

	api := router.Group("/api")
	api.Use(limiters.API.Middleware())
	api.GET("/user", handler.handleCurrentUser)
	api.POST("/analyze", limiters.Analysis.Middleware(), handler.handleAnalyze)

	proxy := api.Group("/github")
	proxy.Use(handler.requireSession)
	proxy.GET("/repos", handler.handleListRepos)
	proxy.GET("/contents/:owner/:repo", handler.handleListContents)
	proxy.GET("/file/:owner/:repo", handler.handleGetFile)
	proxy.POST("/create-branch", handler.handleCreateBranch)
	proxy.POST("/push", handler.handlePushFile)

	return router, nil
}

type httpHandler struct {
	config   config.AppConfig
	oauth    OAuthExchanger
	tokens   SessionIssuer
	sessions SessionResolver
	users    IdentityStore
	github   RepositoryProxy
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "revit-backend"})
}

func (h *httpHandler) handleAuthStart(c *gin.Context) {
	state := uuid.NewString()
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/", "", false, true)
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

func (h *httpHandler) handleAuthCallback(c *gin.Context) {
	state := c.Query("state")
	expected, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != expected {
		h.logger.Warn("oauth state mismatch")
		h.redirectWithError(c, "auth_failed")
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	user, err := h.oauth.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		h.redirectWithError(c, "auth_failed")
		return
	}

	if _, err := h.users.Upsert(user); err != nil {
		h.logger.Error("failed to persist identity", zap.Error(err))
		h.redirectWithError(c, "auth_failed")
		return
	}

	token, _, err := h.tokens.IssueSessionToken(c.Request.Context(), user)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		h.redirectWithError(c, "auth_failed")
		return
	}

	maxAge := int(h.config.SessionTTL / time.Second)
	c.SetCookie(h.config.SessionCookieName, token, maxAge, "/", "", false, true)
	c.Redirect(http.StatusFound, h.config.FrontendOrigin)
}

func (h *httpHandler) redirectWithError(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, h.config.FrontendOrigin+"/?error="+code)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetCookie(h.config.SessionCookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, h.config.FrontendOrigin)
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        claims.UserID(),
		"username":  claims.Login,
		"avatarUrl": claims.AvatarURL,
	})
}

func (h *httpHandler) requireSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) sessionClaims(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}

// accessToken resolves the caller's stored GitHub token. A valid session
// whose identity row disappeared counts as unauthenticated.
func (h *httpHandler) accessToken(c *gin.Context) (string, bool) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return "", false
	}
	token, err := h.users.AccessTokenFor(claims.UserID())
	if err != nil {
		h.logger.Warn("no stored access token", zap.String("github_id", claims.UserID()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return "", false
	}
	return token, true
}

func (h *httpHandler) handleListRepos(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}
	repos, err := h.github.ListRepositories(c.Request.Context(), token)
	if err != nil {
		h.writeProxyError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func (h *httpHandler) handleListContents(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}
	entries, err := h.github.ListContents(c.Request.Context(), token,
		c.Param("owner"), c.Param("repo"), c.Query("path"), c.Query("branch"))
	if err != nil {
		h.writeProxyError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleGetFile(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "File path is required"})
		return
	}
	file, err := h.github.GetFile(c.Request.Context(), token,
		c.Param("owner"), c.Param("repo"), path, c.Query("branch"))
	if err != nil {
		h.writeProxyError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type createBranchPayload struct {
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	BaseBranch    string `json:"baseBranch"`
	NewBranchName string `json:"newBranchName"`
}

func (h *httpHandler) handleCreateBranch(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}
	var payload createBranchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if payload.Owner == "" || payload.Repo == "" || payload.BaseBranch == "" || payload.NewBranchName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "owner, repo, baseBranch and newBranchName are required"})
		return
	}
	if err := validateBranchName(payload.NewBranchName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ref, err := h.github.CreateBranch(c.Request.Context(), token,
		payload.Owner, payload.Repo, payload.BaseBranch, payload.NewBranchName)
	if err != nil {
		h.writeProxyError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

type pushFilePayload struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Content string `json:"content"`
}

func (h *httpHandler) handlePushFile(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}
	var payload pushFilePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if payload.Owner == "" || payload.Repo == "" || payload.Branch == "" || payload.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "owner, repo, branch and path are required"})
		return
	}
	message := payload.Message
	if message == "" {
		message = "Update " + payload.Path
	}

	result, err := h.github.PushFile(c.Request.Context(), token,
		payload.Owner, payload.Repo, payload.Branch, payload.Path, message, payload.Content)
	if err != nil {
		h.writeProxyError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) writeProxyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, githubapi.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "GitHub rejected the stored credentials"})
	case errors.Is(err, githubapi.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Resource not found on GitHub"})
	default:
		h.logger.Error("github proxy request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"message": "GitHub request failed"})
	}
}
