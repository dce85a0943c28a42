// Command function serves the connection routes from a single handler, for
// serverless platforms that bind one entrypoint to $PORT.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtroode/gcal-connect/internal/api/function"
	httpServer "github.com/dtroode/gcal-connect/internal/api/rest/server"
	"github.com/dtroode/gcal-connect/internal/app"
	"github.com/dtroode/gcal-connect/internal/config"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/server"
)

const defaultPort = "8080"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	core, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("failed to initialize", "error", err)
	}
	defer core.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	handler := function.NewHandler(core.Service, core.Verifier, core.ReturnURLs.Allowed, logger)
	srv := httpServer.NewHTTPServer(handler, ":"+port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	logger.Info("Starting function on", "address", srv.Address())
	if err := srv.Start(server.NewPlainListener()); err != nil {
		logger.Error("function server failed", "error", err)
	}
	logger.Info("shutdown complete")
}
