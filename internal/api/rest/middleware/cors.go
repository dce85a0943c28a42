package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/api/response"
)

// CORS allows browser calls from the frontend origins.
type CORS struct {
	allowed func(origin string) bool
}

// NewCORS creates a CORS middleware accepting origins for which allowed returns true.
func NewCORS(allowed func(origin string) bool) *CORS {
	return &CORS{allowed: allowed}
}

// Handle answers preflight requests and decorates the rest.
func (m *CORS) Handle(c *gin.Context) {
	response.ApplyCORS(c.Writer.Header(), c.GetHeader("Origin"), m.allowed)

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
