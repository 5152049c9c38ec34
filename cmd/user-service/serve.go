// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/tankline/user-service/internal/account"
	"github.com/tankline/user-service/internal/account/postgres"
	"github.com/tankline/user-service/internal/config"
	"github.com/tankline/user-service/internal/httpapi"
	"github.com/tankline/user-service/internal/identity"
	"github.com/tankline/user-service/internal/logging"
	"github.com/tankline/user-service/internal/observability"
)

const serviceName = "user-service"

// pingBackoff bounds the startup wait for the database: exponential from
// 500ms, capped at 10 attempts.
const (
	pingBaseDelay   = 500 * time.Millisecond
	pingMaxAttempts = 10
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server: POST /auth/exchange, GET /me,
PATCH /me/username, plus metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.SetDefault(serviceName, version, string(cfg.Stage), cfg.LogFormat)
	logger := slog.Default()

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// The database may come up after us; retry the first ping with backoff.
	backoff := retry.WithMaxRetries(pingMaxAttempts, retry.NewExponential(pingBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := store.Ping(ctx); pingErr != nil {
			logger.Warn("database not reachable yet", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "initial ping").Wrap(err)
	}
	logger.Info("connected to database")

	resolver := identity.NewProviderResolver(
		cfg.DevProviderAllowed(),
		identity.NewPGSClient(cfg.PGSWebClientID, cfg.PGSWebClientSecret),
	)

	service, err := account.NewService(resolver, store, cfg.SessionTTL())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server; readiness follows database connectivity.
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return store.Ping(pingCtx) == nil
		})
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go func() {
			if serveErr, ok := <-obsErrCh; ok && serveErr != nil {
				logger.Error("observability server failed", "error", serveErr)
				cancel()
			}
		}()
		metrics = obsServer.Metrics()
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:  logger,
		Service: service,
		Metrics: metricsOrNil(metrics),
		Stage:   string(cfg.Stage),
	})

	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", cfg.Port)
	server := httpapi.NewServer(router, serverCfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := server.Start(); serveErr != nil {
			errChan <- serveErr
		}
	}()

	logger.Info("service ready",
		"addr", serverCfg.Addr,
		"stage", string(cfg.Stage),
		"session_ttl", cfg.SessionTTL().String(),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// metricsOrNil avoids handing the router a typed-nil interface value.
func metricsOrNil(m *observability.Metrics) httpapi.MetricsRecorder {
	if m == nil {
		return nil
	}
	return m
}
