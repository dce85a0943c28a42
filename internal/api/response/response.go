// Package response holds the JSON bodies and error translation shared by the
// HTTP transports.
package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dtroode/gcal-connect/internal/model"
)

// ErrorBody is returned for every failed request.
type ErrorBody struct {
	Error       string `json:"error"`
	NeedsReauth bool   `json:"needsReauth,omitempty"`
}

// StatusBody answers the connection status route.
type StatusBody struct {
	Connected bool    `json:"connected"`
	Email     *string `json:"email"`
}

// TokenBody answers the access token route.
type TokenBody struct {
	AccessToken string `json:"accessToken"`
}

// SuccessBody answers the disconnect route.
type SuccessBody struct {
	Success bool `json:"success"`
}

// HealthBody answers the health probe.
type HealthBody struct {
	Status string `json:"status"`
}

// NewStatusBody converts a connection status, reporting a missing email as null.
func NewStatusBody(status model.ConnectionStatus) StatusBody {
	body := StatusBody{Connected: status.Connected}
	if status.Connected && status.Email != "" {
		email := status.Email
		body.Email = &email
	}
	return body
}

// FromError maps a service error to a status code and a client-safe body.
func FromError(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{Error: "unauthorized"}
	case errors.Is(err, model.ErrNotConnected):
		return http.StatusNotFound, ErrorBody{Error: "google account not connected", NeedsReauth: true}
	case errors.Is(err, model.ErrMissingUserID):
		return http.StatusBadRequest, ErrorBody{Error: "userId is required"}
	case errors.Is(err, model.ErrInvalidState), errors.Is(err, model.ErrMissingCode):
		return http.StatusBadRequest, ErrorBody{Error: "invalid request"}
	case errors.Is(err, model.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{Error: "google is temporarily unavailable"}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal server error"}
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "600"
)

// ApplyCORS writes CORS headers for an allowed origin and reports whether it did.
func ApplyCORS(h http.Header, origin string, allowed func(string) bool) bool {
	h.Add("Vary", "Origin")
	if origin == "" || allowed == nil || !allowed(origin) {
		return false
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	return true
}
