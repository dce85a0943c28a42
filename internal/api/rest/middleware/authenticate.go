package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/api/response"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
)

// Authenticate validates bearer session tokens and injects the user id into the request context.
type Authenticate struct {
	verifier       model.SessionVerifier
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(verifier model.SessionVerifier, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{verifier: verifier, contextManager: contextManager, logger: logger}
}

// Handle rejects the request with 401 unless it carries a valid session.
func (m *Authenticate) Handle(c *gin.Context) {
	tokenString := response.BearerToken(c.GetHeader("Authorization"))
	if tokenString == "" {
		m.reject(c, "missing bearer token")
		return
	}

	userID, err := m.verifier.ParseSessionToken(tokenString)
	if err != nil || userID == "" {
		m.reject(c, "invalid session token")
		return
	}

	ctx := m.contextManager.SetUserIDToContext(c.Request.Context(), userID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func (m *Authenticate) reject(c *gin.Context, reason string) {
	m.logger.Debug("Authenticate: request rejected", "path", c.Request.URL.Path, "reason", reason)
	status, body := response.FromError(model.ErrUnauthenticated)
	c.AbortWithStatusJSON(status, body)
}
