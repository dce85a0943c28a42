package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel   int        `env:"LOG_LEVEL" envDefault:"0"`
	HTTP       HTTP       `envPrefix:"HTTP_"`
	Database   Database   `envPrefix:"DATABASE_"`
	Google     Google     `envPrefix:"GOOGLE_"`
	Encryption Encryption `envPrefix:"TOKEN_"`
	Supabase   Supabase   `envPrefix:"SUPABASE_"`
	Frontend   Frontend   `envPrefix:"FRONTEND_"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Port               string        `env:"PORT" envDefault:"3001"`
	EnableHTTPS        bool          `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string        `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string        `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Database contains database connection parameters.
// DSN must use a role that bypasses row-level security.
type Database struct {
	DSN         string `env:"DSN"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Google contains OAuth client parameters.
type Google struct {
	ClientID                 string        `env:"CLIENT_ID"`
	ClientSecret             string        `env:"CLIENT_SECRET"`
	RedirectURI              string        `env:"REDIRECT_URI"`
	CredentialsSecretProject string        `env:"CREDENTIALS_SECRET_PROJECT"`
	CredentialsSecretName    string        `env:"CREDENTIALS_SECRET_NAME"`
	CredentialsFile          string        `env:"CREDENTIALS_FILE"`
	RequestTimeout           time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RateLimit                int           `env:"RATE_LIMIT" envDefault:"0"`
	RevokeOnDisconnect       bool          `env:"REVOKE_ON_DISCONNECT" envDefault:"true"`
}

// HasCredentialSource reports whether client credentials can be resolved.
func (g Google) HasCredentialSource() bool {
	if g.ClientID != "" && g.ClientSecret != "" {
		return true
	}
	if g.CredentialsSecretProject != "" && g.CredentialsSecretName != "" {
		return true
	}
	return g.CredentialsFile != ""
}

// Encryption contains the refresh token encryption passphrase.
// Rotating it makes every stored refresh token unreadable.
type Encryption struct {
	Key string `env:"ENCRYPTION_KEY"`
}

// Supabase contains session verification parameters.
type Supabase struct {
	JWTSecret   string `env:"JWT_SECRET"`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"authenticated"`
}

// Frontend contains redirect targets for the OAuth callback.
type Frontend struct {
	URL            string   `env:"URL" envDefault:"http://localhost:5173"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if !c.Google.HasCredentialSource() {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, GOOGLE_CREDENTIALS_SECRET_* or GOOGLE_CREDENTIALS_FILE is required"))
	}
	if c.Google.RedirectURI == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URI is required"))
	}
	if c.Encryption.Key == "" {
		errs = append(errs, errors.New("TOKEN_ENCRYPTION_KEY is required"))
	}
	if c.Supabase.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required"))
	}
	if c.Frontend.URL == "" {
		errs = append(errs, errors.New("FRONTEND_URL is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
