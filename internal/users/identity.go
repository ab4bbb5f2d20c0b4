package users

import (
	"strings"
	"time"
)

// Identity is the stored record for a GitHub login. The access token is kept
// on the row so the GitHub proxy can act on the user's behalf between
// sessions.
type Identity struct {
	GitHubID    string    `gorm:"column:github_id;primaryKey;size:32;not null"`
	Login       string    `gorm:"column:login;size:190;not null;index"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	AccessToken string    `gorm:"column:access_token;size:255"`
	LastLoginAt time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
