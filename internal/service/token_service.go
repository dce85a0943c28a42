package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
)

// ConnectResult is the outcome of a completed authorization.
type ConnectResult struct {
	Email     string
	ReturnURL string
}

// TokenService owns the Google connection lifecycle of each user: consent,
// code exchange, on-demand refresh and disconnect.
type TokenService struct {
	store              model.TokenStore
	provider           model.OAuthProvider
	returnURLs         *ReturnURLPolicy
	logger             *logger.Logger
	revokeOnDisconnect bool
	now                func() time.Time
}

// Option configures TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// WithRevokeOnDisconnect toggles best-effort revocation at Google on disconnect.
func WithRevokeOnDisconnect(revoke bool) Option {
	return func(s *TokenService) { s.revokeOnDisconnect = revoke }
}

func NewTokenService(
	store model.TokenStore,
	provider model.OAuthProvider,
	returnURLs *ReturnURLPolicy,
	logger *logger.Logger,
	opts ...Option,
) *TokenService {
	s := &TokenService{
		store:              store,
		provider:           provider,
		returnURLs:         returnURLs,
		logger:             logger,
		revokeOnDisconnect: true,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginConnect returns the consent URL for userID. Nothing is persisted.
func (s *TokenService) BeginConnect(ctx context.Context, userID, returnURL string) (string, error) {
	if userID == "" {
		return "", model.ErrMissingUserID
	}

	state, err := EncodeState(OAuthState{UserID: userID, ReturnURL: returnURL})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}

	s.logger.Debug("Token service: consent flow started", "user_id", userID)

	return s.provider.AuthCodeURL(state), nil
}

// CompleteConnect exchanges code and stores the resulting credentials. The
// record is written only after every provider call succeeded.
func (s *TokenService) CompleteConnect(ctx context.Context, code, rawState string) (ConnectResult, error) {
	state, err := DecodeState(rawState)
	if err != nil {
		return ConnectResult{}, err
	}
	result := ConnectResult{ReturnURL: s.returnURLs.Sanitize(state.ReturnURL)}

	if code == "" {
		return result, model.ErrMissingCode
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("Token service: code exchange failed", "user_id", state.UserID, "error", err)
		return result, fmt.Errorf("exchange code: %w", err)
	}

	email, err := s.provider.FetchEmail(ctx, tok.AccessToken)
	if err != nil {
		s.logger.Error("Token service: failed to fetch account email", "user_id", state.UserID, "error", err)
		return result, fmt.Errorf("fetch email: %w", err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		existing, found, err := s.store.Get(ctx, state.UserID)
		switch {
		case err != nil && !errors.Is(err, model.ErrUndecryptable):
			return result, fmt.Errorf("load existing token: %w", err)
		case err == nil && found:
			refreshToken = existing.RefreshToken
		}
		s.logger.Warn("Token service: provider returned no refresh token",
			"user_id", state.UserID,
			"reused_existing", refreshToken != "")
	}

	record := model.OAuthTokenRecord{
		UserID:       state.UserID,
		RefreshToken: refreshToken,
		AccessToken:  tok.AccessToken,
		TokenExpiry:  tok.Expiry,
		AccountEmail: email,
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		s.logger.Error("Token service: failed to persist token", "user_id", state.UserID, "error", err)
		return result, fmt.Errorf("persist token: %w", err)
	}

	s.logger.Info("Token service: google account connected", "user_id", state.UserID)

	result.Email = email
	return result, nil
}

// GetValidAccessToken returns a non-stale access token, refreshing it when
// needed. Credentials that can no longer be refreshed are deleted and
// model.ErrNotConnected is returned. Transient provider failures are returned
// as is and leave the record untouched.
func (s *TokenService) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", model.ErrMissingUserID
	}

	rec, found, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrUndecryptable) {
			return "", s.dropConnection(ctx, userID, err)
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	if !found {
		return "", model.ErrNotConnected
	}

	if rec.AccessToken != "" && !rec.IsStale(s.now()) {
		return rec.AccessToken, nil
	}

	if !rec.HasRefreshToken() {
		return "", s.dropConnection(ctx, userID, errors.New("no refresh token stored"))
	}

	tok, err := s.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if errors.Is(err, model.ErrRefreshRevoked) {
			return "", s.dropConnection(ctx, userID, err)
		}
		s.logger.Warn("Token service: refresh failed, keeping credentials", "user_id", userID, "error", err)
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
		rec.AccessToken = tok.AccessToken
		rec.TokenExpiry = tok.Expiry
		err = s.store.Upsert(ctx, rec)
	} else {
		err = s.store.UpdateAccessToken(ctx, userID, tok.AccessToken, tok.Expiry)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrNotConnected
		}
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	s.logger.Debug("Token service: access token refreshed",
		"user_id", userID,
		"rotated", tok.RefreshToken != "")

	return tok.AccessToken, nil
}

// Disconnect removes the user's credentials. It succeeds when none exist.
func (s *TokenService) Disconnect(ctx context.Context, userID string) error {
	if userID == "" {
		return model.ErrMissingUserID
	}

	if s.revokeOnDisconnect {
		s.revoke(ctx, userID)
	}

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	s.logger.Info("Token service: google account disconnected", "user_id", userID)
	return nil
}

// ConnectionStatus reports whether the user holds a usable refresh token.
func (s *TokenService) ConnectionStatus(ctx context.Context, userID string) (model.ConnectionStatus, error) {
	if userID == "" {
		return model.ConnectionStatus{}, model.ErrMissingUserID
	}

	rec, found, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrUndecryptable) {
			return model.ConnectionStatus{}, nil
		}
		return model.ConnectionStatus{}, fmt.Errorf("load token: %w", err)
	}
	if !found || !rec.HasRefreshToken() {
		return model.ConnectionStatus{}, nil
	}

	return model.ConnectionStatus{Connected: true, Email: rec.AccountEmail}, nil
}

func (s *TokenService) dropConnection(ctx context.Context, userID string, cause error) error {
	s.logger.Warn("Token service: deleting unusable credentials", "user_id", userID, "reason", cause)

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete unusable token: %w", err)
	}
	return model.ErrNotConnected
}

func (s *TokenService) revoke(ctx context.Context, userID string) {
	rec, found, err := s.store.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("Token service: skipping revoke, token unreadable", "user_id", userID, "error", err)
		return
	}
	if !found || !rec.HasRefreshToken() {
		return
	}
	if err := s.provider.Revoke(ctx, rec.RefreshToken); err != nil {
		s.logger.Warn("Token service: revoke at provider failed", "user_id", userID, "error", err)
	}
}
