package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/umeshinduranga/revit/backend/internal/auth"
	"github.com/umeshinduranga/revit/backend/internal/collab"
	"github.com/umeshinduranga/revit/backend/internal/config"
	"github.com/umeshinduranga/revit/backend/internal/database"
	"github.com/umeshinduranga/revit/backend/internal/githubapi"
	"github.com/umeshinduranga/revit/backend/internal/logging"
	"github.com/umeshinduranga/revit/backend/internal/server"
	"github.com/umeshinduranga/revit/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "revit-api",
		Short: "Revit collaborative editor backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("frontend-origin", defaults.GetString("http.frontend_origin"), "Frontend origin allowed by CORS and used for redirects")
	cmd.PersistentFlags().String("github-client-id", defaults.GetString("github.client_id"), "GitHub OAuth client ID")
	cmd.PersistentFlags().String("github-callback-url", defaults.GetString("github.callback_url"), "GitHub OAuth callback URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("session-cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("github-client-secret", "", "GitHub OAuth client secret (overrides env)")
	cmd.PersistentFlags().String("session-signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.frontend_origin", "frontend-origin")
	bindFlag(cmd, "github.client_id", "github-client-id")
	bindFlag(cmd, "github.callback_url", "github-callback-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "session.cookie_name", "session-cookie-name")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "github.client_secret", "github-client-secret")
	bindFlag(cmd, "session.signing_secret", "session-signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	identityService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	oauth, err := auth.NewGitHubOAuth(auth.GitHubOAuthConfig{
		ClientID:     appConfig.GitHubClientID,
		ClientSecret: appConfig.GitHubClientSecret,
		CallbackURL:  appConfig.GitHubCallbackURL,
	})
	if err != nil {
		return err
	}

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		TokenTTL:      appConfig.SessionTTL,
	})

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	hub := collab.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	gateway, err := collab.NewGateway(collab.GatewayConfig{
		Hub:      hub,
		Sessions: sessionValidator,
		Logger:   logger,
		// Same origin policy as the CORS layer: only the frontend may open
		// cookie-authenticated websocket connections from a browser.
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == appConfig.FrontendOrigin
		},
	})
	if err != nil {
		return err
	}

	githubClient := githubapi.NewClient(githubapi.ClientConfig{Logger: logger})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Config:   appConfig,
		OAuth:    oauth,
		Tokens:   tokenIssuer,
		Sessions: sessionValidator,
		Users:    identityService,
		GitHub:   githubClient,
		Realtime: gateway,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
