package model

import (
	"context"
	"time"
)

// RefreshSkew is how long before the recorded expiry an access token is already treated as stale.
const RefreshSkew = 5 * time.Minute

// TokenStore defines persistence operations for Google OAuth credentials.
type TokenStore interface {
	// Upsert inserts the record or replaces the existing one for the same user.
	Upsert(ctx context.Context, record OAuthTokenRecord) error
	// Get returns found=false with a nil error when the user has never connected.
	Get(ctx context.Context, userID string) (record OAuthTokenRecord, found bool, err error)
	// UpdateAccessToken replaces only the access token and its expiry.
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry time.Time) error
	// Delete removes the record. Removing an absent record is not an error.
	Delete(ctx context.Context, userID string) error
}

// OAuthTokenRecord is the persisted Google credential set of one user.
// RefreshToken holds plaintext; the store encrypts it at rest.
type OAuthTokenRecord struct {
	UserID       string
	RefreshToken string
	AccessToken  string
	TokenExpiry  time.Time
	AccountEmail string
	UpdatedAt    time.Time
}

// HasRefreshToken reports whether the record carries a usable refresh token.
func (r OAuthTokenRecord) HasRefreshToken() bool {
	return r.RefreshToken != ""
}

// IsStale reports whether the access token must be refreshed at the given instant.
func (r OAuthTokenRecord) IsStale(now time.Time) bool {
	return !now.Before(r.TokenExpiry.Add(-RefreshSkew))
}

// ConnectionStatus describes whether a user has a usable Google connection.
type ConnectionStatus struct {
	Connected bool
	Email     string
}
