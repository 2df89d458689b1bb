// Package main is the entry point for the floodwatch API server.
//
// It loads configuration, connects the database pool and upstream clients,
// builds the sweep pipeline, and serves the HTTP API (health check plus the
// operator sweep trigger). Graceful shutdown is handled via OS signal
// interception (SIGINT, SIGTERM).
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"floodwatch/internal/alert"
	"floodwatch/internal/config"
	"floodwatch/internal/core"
	"floodwatch/internal/db"
	"floodwatch/internal/external"
	"floodwatch/internal/hydro"
	"floodwatch/internal/observability"
	"floodwatch/internal/scheduler"
	"floodwatch/internal/types"
)

// shutdownTimeout bounds graceful termination of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("floodwatch API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"threshold_scale", cfg.ScaleDivisor(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	sweeper := buildSweeper(ctx, cfg, pool, logger)

	srv, err := core.NewServer(cfg, sweeper, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		core.DatabaseProbe{Pool: pool},
		core.UpstreamProbe{
			BaseURL: cfg.Upstream.BaseURL,
			Client:  &http.Client{Timeout: 2 * time.Second},
		},
	}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newPool creates the pgx connection pool with the configured tuning and
// verifies connectivity before returning.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// buildSweeper wires the full sweep pipeline: repositories, upstream clients,
// evaluator, dedup guard, dispatcher, and metrics.
func buildSweeper(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) *scheduler.Sweeper {
	hydroClient := hydro.NewClient(
		&http.Client{Timeout: cfg.Upstream.CallTimeout},
		hydro.ClientConfig{
			BaseURL:     cfg.Upstream.BaseURL,
			CallTimeout: cfg.Upstream.CallTimeout,
			Logger:      logger,
		},
	)

	fcmClient := external.NewFCMClient(
		&http.Client{Timeout: cfg.Push.Timeout},
		external.FCMClientConfig{
			ServerKey: cfg.Push.ServerKey.Unmask(),
			BaseURL:   cfg.Push.Endpoint,
			Logger:    logger,
		},
	)

	dispatchRepo := db.NewDispatchRepository(pool)
	guard := alert.NewDedupGuard(dispatchRepo, cfg.Alert.CooldownWindow, types.RealClock{}, logger)

	return scheduler.NewSweeper(scheduler.SweeperConfig{
		Users:       db.NewUserRepository(pool),
		Conditions:  hydroClient,
		Evaluator:   alert.NewEvaluator(cfg.ScaleDivisor()),
		Guard:       guard,
		Dispatcher:  alert.NewDispatcher(fcmClient, guard, logger),
		Metrics:     newSweepMetrics(ctx, cfg, logger),
		Concurrency: cfg.Alert.SweepConcurrency,
		Logger:      logger,
	})
}

// newSweepMetrics returns a CloudWatch emitter when metrics are enabled and
// AWS credentials resolve, and a no-op otherwise. A missing AWS environment
// must not keep the service from starting locally.
func newSweepMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) observability.SweepMetrics {
	if !cfg.Observability.EnableMetrics {
		return observability.NoopSweepMetrics{}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Warn("metrics disabled, AWS config unavailable", "error", err)
		return observability.NoopSweepMetrics{}
	}

	return observability.NewCloudWatchSweepMetrics(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		logger,
	)
}

// newLogger builds the application-wide JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
