// Package app assembles the connection service from configuration. Both the
// long-running server and the serverless function build on it.
package app

import (
	"context"
	"fmt"

	"github.com/dtroode/gcal-connect/database"
	"github.com/dtroode/gcal-connect/internal/config"
	"github.com/dtroode/gcal-connect/internal/encryption"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/oauth"
	"github.com/dtroode/gcal-connect/internal/repository/postgres"
	"github.com/dtroode/gcal-connect/internal/service"
	"github.com/dtroode/gcal-connect/internal/token"
)

// App holds the wired core shared by every transport.
type App struct {
	Service    *service.TokenService
	Verifier   *token.JWT
	ReturnURLs *service.ReturnURLPolicy

	db *postgres.Connection
}

// Build validates cfg and wires storage, the Google client and the token service.
// Secrets may be nil when no Secret Manager credential source is configured.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, secrets oauth.SecretSource) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cipher, err := encryption.New(cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.DSN); err != nil {
			return nil, err
		}
		log.Info("database migrations applied")
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if secrets == nil {
		secrets = oauth.SecretManagerSource{}
	}
	creds, err := oauth.LoadCredentials(ctx, cfg.Google, secrets)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	provider := oauth.NewGoogle(creds,
		oauth.WithTimeout(cfg.Google.RequestTimeout),
		oauth.WithRateLimit(cfg.Google.RateLimit),
	)
	returnURLs := service.NewReturnURLPolicy(cfg.Frontend.URL, cfg.Frontend.AllowedOrigins)
	store := postgres.NewOAuthTokenRepository(db, cipher)

	return &App{
		Service: service.NewTokenService(store, provider, returnURLs, log,
			service.WithRevokeOnDisconnect(cfg.Google.RevokeOnDisconnect),
		),
		Verifier:   token.NewJWT(cfg.Supabase.JWTSecret, cfg.Supabase.JWTAudience),
		ReturnURLs: returnURLs,
		db:         db,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.db.Close()
}
