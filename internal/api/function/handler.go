// Package function serves the connection routes from a single http.Handler
// for serverless runtimes that hand every request under /auth/google to one
// entrypoint.
package function

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/gcal-connect/internal/api/response"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
)

// GoogleService defines the Google connection operations the function exposes.
type GoogleService interface {
	BeginConnect(ctx context.Context, userID, returnURL string) (string, error)
	ResolveCallback(ctx context.Context, p model.CallbackParams) string
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
	Disconnect(ctx context.Context, userID string) error
	ConnectionStatus(ctx context.Context, userID string) (model.ConnectionStatus, error)
}

// Handler dispatches by path suffix instead of a routing table.
type Handler struct {
	service       GoogleService
	verifier      model.SessionVerifier
	allowedOrigin func(origin string) bool
	logger        *logger.Logger
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a new function Handler.
func NewHandler(
	service GoogleService,
	verifier model.SessionVerifier,
	allowedOrigin func(origin string) bool,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		service:       service,
		verifier:      verifier,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response.ApplyCORS(w.Header(), r.Header.Get("Origin"), h.allowedOrigin)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	log := h.logger.With("request_id", requestID, "path", r.URL.Path)

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(path, "/callback"):
		h.callback(w, r)
	case strings.HasSuffix(path, "/status"):
		h.authenticated(w, r, log, http.MethodGet, h.status)
	case strings.HasSuffix(path, "/token"):
		h.authenticated(w, r, log, http.MethodGet, h.token)
	case strings.HasSuffix(path, "/disconnect"):
		h.authenticated(w, r, log, http.MethodPost, h.disconnect)
	default:
		h.connect(w, r, log)
	}
}

type userHandler func(w http.ResponseWriter, r *http.Request, log *logger.Logger, userID string)

func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request, log *logger.Logger, method string, next userHandler) {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, response.ErrorBody{Error: "method not allowed"})
		return
	}

	token := response.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		h.fail(w, log, model.ErrUnauthenticated)
		return
	}
	userID, err := h.verifier.ParseSessionToken(token)
	if err != nil || userID == "" {
		log.Debug("Function handler: invalid session token")
		h.fail(w, log, model.ErrUnauthenticated)
		return
	}

	next(w, r, log.With("user_id", userID), userID)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	q := r.URL.Query()
	consentURL, err := h.service.BeginConnect(r.Context(), q.Get("userId"), q.Get("returnUrl"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := h.service.ResolveCallback(r.Context(), model.CallbackParams{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, log *logger.Logger, userID string) {
	status, err := h.service.ConnectionStatus(r.Context(), userID)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, response.NewStatusBody(status))
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request, log *logger.Logger, userID string) {
	accessToken, err := h.service.GetValidAccessToken(r.Context(), userID)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, response.TokenBody{AccessToken: accessToken})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request, log *logger.Logger, userID string) {
	if err := h.service.Disconnect(r.Context(), userID); err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("Function handler: disconnected")
	writeJSON(w, http.StatusOK, response.SuccessBody{Success: true})
}

func (h *Handler) fail(w http.ResponseWriter, log *logger.Logger, err error) {
	status, body := response.FromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Function handler: request failed", "status", status, "error", err)
	} else {
		log.Warn("Function handler: request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
