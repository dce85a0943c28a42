package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dtroode/gcal-connect/internal/model"
)

// OAuthState travels through the consent screen in the state parameter.
// It is encoded, not signed.
type OAuthState struct {
	UserID    string `json:"userId"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

// EncodeState packs the state as base64 JSON.
func EncodeState(state OAuthState) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

var stateEncodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawURLEncoding,
	base64.RawStdEncoding,
}

// DecodeState accepts standard and URL-safe base64, padded or not.
func DecodeState(raw string) (OAuthState, error) {
	if raw == "" {
		return OAuthState{}, fmt.Errorf("%w: empty", model.ErrInvalidState)
	}

	var (
		b   []byte
		err error
	)
	for _, enc := range stateEncodings {
		if b, err = enc.DecodeString(raw); err == nil {
			break
		}
	}
	if err != nil {
		return OAuthState{}, fmt.Errorf("%w: %v", model.ErrInvalidState, err)
	}

	var state OAuthState
	if err := json.Unmarshal(b, &state); err != nil {
		return OAuthState{}, fmt.Errorf("%w: %v", model.ErrInvalidState, err)
	}
	if state.UserID == "" {
		return OAuthState{}, fmt.Errorf("%w: no user id", model.ErrInvalidState)
	}

	return state, nil
}
