package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/gcal-connect/internal/model"
)

// DefaultAudience is the audience Supabase puts on signed-in user sessions.
const DefaultAudience = "authenticated"

const roleAuthenticated = "authenticated"

// Claims represents the Supabase session claims this service relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

var _ model.SessionVerifier = (*JWT)(nil)

// JWT verifies Supabase session tokens signed with the project JWT secret.
type JWT struct {
	secretKey string
	audience  string
}

// NewJWT creates a session verifier. An empty audience falls back to DefaultAudience.
func NewJWT(secretKey, audience string) *JWT {
	if audience == "" {
		audience = DefaultAudience
	}
	return &JWT{secretKey: secretKey, audience: audience}
}

// ParseSessionToken validates the session and returns its subject user id.
func (j *JWT) ParseSessionToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	},
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session token is invalid")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("session token has no subject")
	}
	return claims.Subject, nil
}

// GenerateSessionToken signs a session for userID the way Supabase does.
// It backs local development tooling and tests.
func (j *JWT) GenerateSessionToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: roleAuthenticated,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}
