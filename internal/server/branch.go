package server

import (
	"errors"
	"regexp"
	"strings"
)

const maxBranchNameLength = 250

var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

var reservedBranchPrefixes = []string{"refs/", "remotes/"}

// validateBranchName applies the subset of git ref rules the editor
// enforces before calling GitHub.
func validateBranchName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("branch name is required")
	}
	if len(trimmed) > maxBranchNameLength {
		return errors.New("branch name is too long")
	}
	if !branchNamePattern.MatchString(trimmed) {
		return errors.New("branch name contains invalid characters")
	}
	if trimmed == "HEAD" {
		return errors.New("branch name is reserved")
	}
	for _, prefix := range reservedBranchPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return errors.New("branch name uses a reserved prefix")
		}
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasSuffix(trimmed, "/") ||
		strings.Contains(trimmed, "//") || strings.Contains(trimmed, "..") {
		return errors.New("branch name has malformed path segments")
	}
	return nil
}
