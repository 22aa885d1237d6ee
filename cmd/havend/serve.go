// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/havenwell/haven/internal/config"
	"github.com/havenwell/haven/internal/httpapi"
	"github.com/havenwell/haven/internal/identity"
	idpostgres "github.com/havenwell/haven/internal/identity/postgres"
	"github.com/havenwell/haven/internal/logging"
	"github.com/havenwell/haven/internal/observability"
	"github.com/havenwell/haven/internal/store"
	"github.com/havenwell/haven/internal/token"
)

const shutdownTimeout = 5 * time.Second

// ServeDeps carries injectable dependencies for the serve command.
// Nil fields use the real implementations.
type ServeDeps struct {
	PoolOpener func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
	MigrateUp  func(databaseURL string) error
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP server exposing /api/register and /api/login,
plus an optional observability listener for metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, nil)
		},
	}

	flags := cmd.Flags()
	flags.String("listen-addr", ":3000", "API listen address")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("log-format", "json", "log format (json or text)")
	flags.Duration("request-timeout", 10*time.Second, "per-request timeout")
	flags.Duration("token-ttl", time.Hour, "session token validity window")
	flags.Int("password-min-length", 8, "minimum accepted password length")
	flags.Bool("auto-migrate", false, "apply pending schema migrations on startup")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolOpener == nil {
		deps.PoolOpener = store.Open
	}
	if deps.MigrateUp == nil {
		deps.MigrateUp = migrateUp
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("havend", version, cfg.LogFormat)

	slog.Info("starting account service",
		"listen_addr", cfg.ListenAddr,
		"log_format", cfg.LogFormat,
	)

	pool, err := deps.PoolOpener(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	if autoMigrate, _ := cmd.Flags().GetBool("auto-migrate"); autoMigrate {
		if err := deps.MigrateUp(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		slog.Info("schema migrations applied")
	}

	signingKey, err := token.DecodeKey(cfg.Token.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to decode signing key: %w", err)
	}
	issuer, err := token.NewHS256Issuer(signingKey, cfg.Token.TTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	svc, err := identity.NewService(
		idpostgres.NewCredentialStore(pool),
		identity.NewArgon2idHasher(),
		issuer,
		cfg.Password.MinLength,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured. Readiness means the
	// database answers a ping within a short bound.
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	handler := httpapi.NewHandler(svc, metrics, cfg.RequestTimeout, slog.Default())
	apiServer := httpapi.NewServer(cfg.ListenAddr, handler.Routes())

	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Account service started")
	slog.Info("account service ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// migrateUp applies all pending migrations.
func migrateUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	return migrator.Up()
}

// monitorServerErrors cancels the context when a server reports an
// error, so one failed listener brings the whole process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
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

func stopObservability(s *observability.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}
