// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/koinonia/koinonia/internal/config"
	"github.com/koinonia/koinonia/internal/connection"
	connectionpg "github.com/koinonia/koinonia/internal/connection/postgres"
	"github.com/koinonia/koinonia/internal/feed"
	feedpg "github.com/koinonia/koinonia/internal/feed/postgres"
	"github.com/koinonia/koinonia/internal/httpapi"
	"github.com/koinonia/koinonia/internal/identity"
	identitypg "github.com/koinonia/koinonia/internal/identity/postgres"
	"github.com/koinonia/koinonia/internal/logging"
	"github.com/koinonia/koinonia/internal/moderation"
	moderationpg "github.com/koinonia/koinonia/internal/moderation/postgres"
	"github.com/koinonia/koinonia/internal/observability"
	"github.com/koinonia/koinonia/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Koinonia API server",
		Long: `Start the API server, which exposes registration, login,
the member directory, connections, the feed, and moderation over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	// Flag names mirror config keys so changed flags override file
	// values; flag defaults match the built-in defaults.
	defaults := config.Defaults()
	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "HTTP listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health listen address")
	cmd.Flags().String("database.url", defaults.Database.URL, "PostgreSQL connection URL")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")

	return cmd
}

// runServe wires the storage, services, and HTTP surfaces together and
// blocks until a shutdown signal or a server failure.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("koinonia", version, cfg.Log.Format, cfg.Log.Level)

	slog.Info("starting server",
		"http_addr", cfg.HTTP.Addr,
		"observability_addr", cfg.Observability.Addr,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})

	router, err := buildRouter(pool, obsServer.Metrics())
	if err != nil {
		return err
	}

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start observability server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cmd.Println("Server started")
	slog.Info("server ready", "http_addr", cfg.HTTP.Addr)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case serveErr := <-errCh:
		cancel()
		return fmt.Errorf("HTTP server error: %w", serveErr)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error shutting down HTTP server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// buildRouter constructs the repositories and services on top of the
// pool and returns the wired HTTP handler.
func buildRouter(pool *pgxpool.Pool, metrics *observability.Metrics) (http.Handler, error) {
	identityRepo := identitypg.NewIdentityRepository(pool)
	sessionRepo := identitypg.NewSessionRepository(pool)
	connectionRepo := connectionpg.NewConnectionRepository(pool)
	feedRepo := feedpg.NewFeedRepository(pool)
	reportRepo := moderationpg.NewReportRepository(pool)

	identitySvc, err := identity.NewService(identityRepo, sessionRepo, identity.NewPBKDF2Hasher(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to build identity service: %w", err)
	}
	connectionSvc, err := connection.NewService(connectionRepo, identityRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection service: %w", err)
	}
	feedSvc, err := feed.NewService(feedRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed service: %w", err)
	}
	moderationSvc, err := moderation.NewService(reportRepo, feedRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to build moderation service: %w", err)
	}

	return httpapi.NewRouter(httpapi.Deps{
		Identity:    identitySvc,
		Connections: connectionSvc,
		Feed:        feedSvc,
		Moderation:  moderationSvc,
		Metrics:     metrics,
		Logger:      slog.Default(),
	}), nil
}

// monitorServerErrors cancels the run context when a background server
// reports an error. A closed channel means a clean stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
