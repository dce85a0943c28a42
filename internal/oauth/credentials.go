package oauth

import (
	"context"
	"errors"
	"fmt"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/oauth2/google"

	"github.com/dtroode/gcal-connect/internal/config"
)

// ErrNoCredentials is returned when no credential source is configured.
var ErrNoCredentials = errors.New("google client credentials are not configured")

// SecretSource reads secret payloads.
type SecretSource interface {
	Load(ctx context.Context, project, name string) ([]byte, error)
}

// SecretManagerSource reads the latest secret version from Google Secret Manager.
type SecretManagerSource struct{}

func (SecretManagerSource) Load(ctx context.Context, project, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}

	return result.Payload.Data, nil
}

// LoadCredentials resolves the OAuth client from, in order, Secret Manager, a
// client JSON file, and plain environment values.
func LoadCredentials(ctx context.Context, cfg config.Google, secrets SecretSource) (Credentials, error) {
	creds := Credentials{RedirectURL: cfg.RedirectURI}

	var (
		raw []byte
		err error
	)
	switch {
	case cfg.CredentialsSecretProject != "" && cfg.CredentialsSecretName != "":
		raw, err = secrets.Load(ctx, cfg.CredentialsSecretProject, cfg.CredentialsSecretName)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to load credentials from secret manager: %w", err)
		}
	case cfg.CredentialsFile != "":
		raw, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
		}
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		creds.ClientID = cfg.ClientID
		creds.ClientSecret = cfg.ClientSecret
		return creds, nil
	default:
		return Credentials{}, ErrNoCredentials
	}

	parsed, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to parse client credentials: %w", err)
	}
	creds.ClientID = parsed.ClientID
	creds.ClientSecret = parsed.ClientSecret

	return creds, nil
}
