package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "REVIT"
	defaultHTTPAddress    = "0.0.0.0:5000"
	defaultFrontendOrigin = "http://localhost:3000"
	defaultDatabasePath   = "revit.db"
	defaultLogLevel       = "info"
	defaultCookieName     = "revit_session"
	defaultSessionTTL     = 7 * 24 * time.Hour
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	FrontendOrigin     string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	SessionSecret      string
	SessionCookieName  string
	SessionTTL         time.Duration
	DatabasePath       string
	LogLevel           string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.frontend_origin", defaultFrontendOrigin)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", int(defaultSessionTTL.Minutes()))
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		FrontendOrigin:     configViper.GetString("http.frontend_origin"),
		GitHubClientID:     configViper.GetString("github.client_id"),
		GitHubClientSecret: configViper.GetString("github.client_secret"),
		GitHubCallbackURL:  configViper.GetString("github.callback_url"),
		SessionSecret:      configViper.GetString("session.signing_secret"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		SessionTTL:         time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.GitHubClientID) == "" {
		return fmt.Errorf("github.client_id is required")
	}
	if strings.TrimSpace(c.GitHubClientSecret) == "" {
		return fmt.Errorf("github.client_secret is required")
	}
	if strings.TrimSpace(c.GitHubCallbackURL) == "" {
		return fmt.Errorf("github.callback_url is required")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	return nil
}
