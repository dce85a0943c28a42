package model

import (
	"context"
	"time"
)

// ProviderToken is a token set returned by the OAuth provider.
// RefreshToken is empty when the provider did not issue a new one.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuthProvider wraps the authorization server calls.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (ProviderToken, error)
	Refresh(ctx context.Context, refreshToken string) (ProviderToken, error)
	FetchEmail(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// CallbackParams are the query parameters Google sends to the redirect URI.
type CallbackParams struct {
	Code  string
	State string
	Error string
}
