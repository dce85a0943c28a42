package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/api/response"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
)

// GoogleService defines the Google connection operations exposed over HTTP.
type GoogleService interface {
	BeginConnect(ctx context.Context, userID, returnURL string) (string, error)
	ResolveCallback(ctx context.Context, p model.CallbackParams) string
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
	Disconnect(ctx context.Context, userID string) error
	ConnectionStatus(ctx context.Context, userID string) (model.ConnectionStatus, error)
}

// Google handles the /auth/google routes.
type Google struct {
	service        GoogleService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewGoogle creates a new Google handler.
func NewGoogle(service GoogleService, contextManager model.ContextManager, logger *logger.Logger) *Google {
	return &Google{
		service:        service,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Connect redirects the browser to the Google consent screen.
func (h *Google) Connect(c *gin.Context) {
	userID := c.Query("userId")

	consentURL, err := h.service.BeginConnect(c.Request.Context(), userID, c.Query("returnUrl"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, consentURL)
}

// Callback finishes the consent flow and redirects back to the frontend.
func (h *Google) Callback(c *gin.Context) {
	target := h.service.ResolveCallback(c.Request.Context(), model.CallbackParams{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})

	c.Redirect(http.StatusFound, target)
}

// Status reports whether the caller has a usable Google connection.
func (h *Google) Status(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	status, err := h.service.ConnectionStatus(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewStatusBody(status))
}

// Token returns a fresh Google access token for the caller.
func (h *Google) Token(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	accessToken, err := h.service.GetValidAccessToken(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.TokenBody{AccessToken: accessToken})
}

// Disconnect removes the caller's Google connection.
func (h *Google) Disconnect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), userID); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Google handler: disconnected", "user_id", userID)
	c.JSON(http.StatusOK, response.SuccessBody{Success: true})
}

func (h *Google) userID(c *gin.Context) (string, bool) {
	userID, ok := h.contextManager.GetUserIDFromContext(c.Request.Context())
	if !ok {
		h.fail(c, model.ErrUnauthenticated)
		return "", false
	}
	return userID, true
}

func (h *Google) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := response.FromError(err)
	c.JSON(status, body)
}

// Health answers liveness probes.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.HealthBody{Status: "ok"})
}
