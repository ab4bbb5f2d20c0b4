package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/umeshinduranga/revit/backend/internal/auth"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the profile did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUnknownUser indicates no identity row exists for the requested user.
	ErrUnknownUser = errors.New("users: unknown user")
)

// ServiceConfig describes the dependencies required for identity bookkeeping.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service persists GitHub identities and resolves their access tokens.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Upsert records the profile returned by a completed GitHub login, creating
// the identity row on first sight and refreshing it afterwards.
func (s *Service) Upsert(user auth.GitHubUser) (Identity, error) {
	githubID := normalize(user.ID)
	if githubID == "" {
		return Identity{}, ErrInvalidIdentity
	}

	var identity Identity
	err := s.db.Where("github_id = ?", githubID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			GitHubID:    githubID,
			Login:       normalize(user.Login),
			AvatarURL:   normalize(user.AvatarURL),
			AccessToken: user.AccessToken,
			LastLoginAt: s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return Identity{}, err
		}
	} else if err != nil {
		return Identity{}, err
	} else {
		loginAt := s.now()
		updates := map[string]interface{}{
			"last_login_at": loginAt,
		}
		identity.LastLoginAt = loginAt
		if login := normalize(user.Login); login != "" && login != identity.Login {
			updates["login"] = login
			identity.Login = login
		}
		if avatar := normalize(user.AvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["avatar_url"] = avatar
			identity.AvatarURL = avatar
		}
		if user.AccessToken != "" && user.AccessToken != identity.AccessToken {
			updates["access_token"] = user.AccessToken
			identity.AccessToken = user.AccessToken
		}
		if err := s.db.Model(&Identity{}).
			Where("github_id = ?", githubID).
			Updates(updates).Error; err != nil {
			return Identity{}, err
		}
	}

	s.cache.Store(githubID, identity)
	return identity, nil
}

// Get returns the stored identity for the given GitHub user id.
func (s *Service) Get(githubID string) (Identity, error) {
	githubID = normalize(githubID)
	if githubID == "" {
		return Identity{}, ErrInvalidIdentity
	}
	if cached, ok := s.cache.Load(githubID); ok {
		if identity, ok := cached.(Identity); ok {
			return identity, nil
		}
	}

	var identity Identity
	err := s.db.Where("github_id = ?", githubID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnknownUser
	}
	if err != nil {
		return Identity{}, err
	}
	s.cache.Store(githubID, identity)
	return identity, nil
}

// AccessTokenFor returns the GitHub access token stored for the user.
func (s *Service) AccessTokenFor(githubID string) (string, error) {
	identity, err := s.Get(githubID)
	if err != nil {
		return "", err
	}
	if identity.AccessToken == "" {
		return "", ErrUnknownUser
	}
	return identity.AccessToken, nil
}
