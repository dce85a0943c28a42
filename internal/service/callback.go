package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/dtroode/gcal-connect/internal/model"
)

// Query parameters appended to the frontend return URL.
const (
	ParamConnected = "google_connected"
	ParamEmail     = "google_email"
	ParamError     = "google_error"
)

// Failure reasons reported in ParamError.
const (
	ReasonMissingParams  = "missing_params"
	ReasonInvalidState   = "invalid_state"
	ReasonExchangeFailed = "exchange_failed"
	ReasonCallbackFailed = "callback_failed"
)

var providerErrorCode = regexp.MustCompile(`^[a-z_]{1,64}$`)

// ResolveCallback completes the flow and returns where the browser goes next.
// It never fails: errors are reported to the frontend through ParamError.
func (s *TokenService) ResolveCallback(ctx context.Context, p model.CallbackParams) string {
	if p.Error != "" {
		reason := ReasonCallbackFailed
		if providerErrorCode.MatchString(p.Error) {
			reason = p.Error
		}
		s.logger.Warn("Token service: provider returned callback error", "error", p.Error)
		return withQuery(s.returnURLFromState(p.State), ParamError, reason)
	}

	if p.Code == "" || p.State == "" {
		return withQuery(s.returnURLFromState(p.State), ParamError, ReasonMissingParams)
	}

	result, err := s.CompleteConnect(ctx, p.Code, p.State)
	if err != nil {
		target := result.ReturnURL
		if target == "" {
			target = s.returnURLs.Fallback()
		}
		return withQuery(target, ParamError, callbackReason(err))
	}

	return withQuery(result.ReturnURL, ParamConnected, "true", ParamEmail, result.Email)
}

func (s *TokenService) returnURLFromState(raw string) string {
	state, err := DecodeState(raw)
	if err != nil {
		return s.returnURLs.Fallback()
	}
	return s.returnURLs.Sanitize(state.ReturnURL)
}

func callbackReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, model.ErrMissingCode):
		return ReasonMissingParams
	case errors.Is(err, model.ErrProviderRejected):
		return ReasonExchangeFailed
	default:
		return ReasonCallbackFailed
	}
}
