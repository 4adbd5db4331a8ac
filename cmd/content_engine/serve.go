package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/server"
	"github.com/jonathan/content-engine/internal/trends"
)

// pruneInterval is how often stale trend rows are deleted while serving.
const pruneInterval = 24 * time.Hour

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the REST API. The bulk job scheduler runs
in the same process unless SCHEDULER_ENABLED=false.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	var cachePinger server.Pinger
	if a.redis != nil {
		cachePinger = a.cache
	}

	srv, err := server.New(server.Config{
		Port:            port,
		ReadTimeout:     a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout:    a.cfg.Server.WriteTimeout.Duration,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
	}, server.Deps{
		Users:        a.db,
		Passwords:    passwordConfig,
		JWT:          jwtConfig,
		Generations:  a.generation,
		Jobs:         a.db,
		Scheduler:    a.scheduler,
		Trends:       a.trends,
		Intelligence: a.intelligence,
		Database:     a.db,
		Cache:        cachePinger,
		Metrics:      a.metrics,
		Providers:    a.providerNames(),
		Logger:       a.logger.With(logging.String("component", "server")),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer a.scheduler.Stop()
	} else {
		a.logger.Info("scheduler disabled, jobs run only on demand")
	}

	go pruneTrends(ctx, a.trends, a.logger)

	return srv.Start(ctx)
}

// pruneTrends deletes expired trend rows once per interval until ctx ends.
func pruneTrends(ctx context.Context, svc *trends.Service, logger logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if _, err := svc.Prune(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("trend pruning failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
