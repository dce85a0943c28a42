package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/logger"
)

// Logging logs every HTTP request with its status and duration.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Handle logs path, duration and status for each request. Errors attached by
// handlers through c.Error are logged, never returned to the client.
func (l *Logging) Handle(c *gin.Context) {
	start := time.Now()
	path := c.Request.URL.Path

	l.logger.Debug("HTTP request started",
		"method", c.Request.Method,
		"path", path,
		"request_id", c.GetString(RequestIDKey))

	c.Next()

	status := c.Writer.Status()
	attrs := []any{
		"method", c.Request.Method,
		"path", path,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", c.GetString(RequestIDKey),
	}

	switch {
	case status >= 500:
		l.logger.Error("HTTP request completed", attrs...)
	case status >= 400:
		l.logger.Warn("HTTP request completed", attrs...)
	default:
		l.logger.Info("HTTP request completed", attrs...)
	}

	if len(c.Errors) > 0 {
		l.logger.Error("HTTP request failed",
			"path", path,
			"error", c.Errors.String(),
			"status", status,
			"request_id", c.GetString(RequestIDKey))
	}
}
