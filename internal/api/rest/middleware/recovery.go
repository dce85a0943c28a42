package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/api/response"
	"github.com/dtroode/gcal-connect/internal/logger"
)

// Recovery turns handler panics into 500 responses.
type Recovery struct {
	logger *logger.Logger
}

// NewRecovery creates a new Recovery middleware.
func NewRecovery(logger *logger.Logger) *Recovery {
	return &Recovery{logger: logger}
}

func (m *Recovery) Handle(c *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("HTTP handler panicked",
				"path", c.Request.URL.Path,
				"panic", rec,
				"request_id", c.GetString(RequestIDKey))
			status, body := response.FromError(nil)
			c.AbortWithStatusJSON(status, body)
		}
	}()
	c.Next()
}
