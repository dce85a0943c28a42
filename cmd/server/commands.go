package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dtroode/gcal-connect/database"
	apictx "github.com/dtroode/gcal-connect/internal/api/context"
	"github.com/dtroode/gcal-connect/internal/api/rest/router"
	httpServer "github.com/dtroode/gcal-connect/internal/api/rest/server"
	"github.com/dtroode/gcal-connect/internal/app"
	"github.com/dtroode/gcal-connect/internal/config"
	"github.com/dtroode/gcal-connect/internal/logger"
	"github.com/dtroode/gcal-connect/internal/model"
	"github.com/dtroode/gcal-connect/internal/server"
	"github.com/dtroode/gcal-connect/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gcal-connect",
		Short:         "Google Calendar connection service",
		Long:          "Runs the OAuth connect, callback and access token endpoints for Google Calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  runMigrate,
		},
		newSessionTokenCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				logAppVersion(cmd)
			},
		},
	)

	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	logger := logger.New(cfg.LogLevel)

	core, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer core.Close()

	r := router.New(core.Service, core.Verifier, apictx.NewManager(), core.ReturnURLs.Allowed, logger)
	srv := httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "https", cfg.HTTP.EnableHTTPS)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			serveErr <- err
			stop()
		}
	}(srv)

	logAppVersion(cmd)

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	if err := database.Migrate(cmd.Context(), cfg.Database.DSN); err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintln(cmd.OutOrStdout(), green("✓"), "migrations applied")
	return nil
}

func newSessionTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "session-token",
		Short: "Sign a session token for local testing",
		Long: `Sign a session token with SUPABASE_JWT_SECRET, in the same shape the identity
provider issues, so the authenticated routes can be exercised without a frontend.`,
		Example: `  gcal-connect session-token --user 4f1c...e2 --ttl 2h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			if cfg.Supabase.JWTSecret == "" {
				return errors.New("SUPABASE_JWT_SECRET is required")
			}

			signed, err := token.NewJWT(cfg.Supabase.JWTSecret, cfg.Supabase.JWTAudience).GenerateSessionToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id placed in the sub claim (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func logAppVersion(cmd *cobra.Command) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n%s %s\n%s %s\n",
		cyan("Build version:"), buildVersion,
		cyan("Build date:"), buildDate,
		cyan("Build commit:"), buildCommit,
	)
}
