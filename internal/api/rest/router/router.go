package router

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/gcal-connect/internal/api/rest/handler"
	"github.com/dtroode/gcal-connect/internal/api/rest/middleware"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
)

// Router builds the HTTP routing table of the connection service.
type Router struct {
	service        handler.GoogleService
	verifier       model.SessionVerifier
	contextManager model.ContextManager
	allowedOrigin  func(origin string) bool
	logger         *logger.Logger
}

// New creates new Router instance.
func New(
	service handler.GoogleService,
	verifier model.SessionVerifier,
	contextManager model.ContextManager,
	allowedOrigin func(origin string) bool,
	logger *logger.Logger,
) *Router {
	return &Router{
		service:        service,
		verifier:       verifier,
		contextManager: contextManager,
		allowedOrigin:  allowedOrigin,
		logger:         logger,
	}
}

// Register mounts middleware and routes and returns the engine.
func (r *Router) Register() *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.NewRecovery(r.logger).Handle,
		middleware.RequestID,
		middleware.NewLogging(r.logger).Handle,
		middleware.NewCORS(r.allowedOrigin).Handle,
	)

	engine.GET("/health", handler.Health)
	r.registerGoogleRoutes(engine)

	return engine
}

func (r *Router) registerGoogleRoutes(engine *gin.Engine) {
	google := handler.NewGoogle(r.service, r.contextManager, r.logger)
	authenticate := middleware.NewAuthenticate(r.verifier, r.contextManager, r.logger)

	group := engine.Group("/auth/google")
	group.GET("", google.Connect)
	group.GET("/callback", google.Callback)

	authed := group.Group("", authenticate.Handle)
	authed.GET("/status", google.Status)
	authed.GET("/token", google.Token)
	authed.POST("/disconnect", google.Disconnect)
}
