// Package main is the entrypoint for the alert sweeper Lambda function.
//
// The sweeper runs every 15 minutes via an EventBridge rule. Each invocation
// performs one full alert sweep: it loads every alert-eligible user, evaluates
// their favorite reaches against current flood forecasts, and dispatches push
// notifications for threshold crossings that are not inside the cool-down
// window.
//
// This file handles dependency wiring (cold start) and delegates the sweep
// logic to internal/scheduler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"floodwatch/internal/alert"
	"floodwatch/internal/config"
	"floodwatch/internal/db"
	"floodwatch/internal/external"
	"floodwatch/internal/hydro"
	"floodwatch/internal/observability"
	"floodwatch/internal/scheduler"
	"floodwatch/internal/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("sweeper Lambda initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var metrics observability.SweepMetrics = observability.NoopSweepMetrics{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		metrics = observability.NewCloudWatchSweepMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
	}

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

	sweeper := scheduler.NewSweeper(scheduler.SweeperConfig{
		Users:       db.NewUserRepository(pool),
		Conditions:  hydroClient,
		Evaluator:   alert.NewEvaluator(cfg.ScaleDivisor()),
		Guard:       guard,
		Dispatcher:  alert.NewDispatcher(fcmClient, guard, logger),
		Metrics:     metrics,
		Concurrency: cfg.Alert.SweepConcurrency,
		Logger:      logger,
	})

	logger.Info("sweeper Lambda initialized",
		"environment", cfg.Environment,
		"threshold_scale", cfg.ScaleDivisor(),
		"concurrency", cfg.Alert.SweepConcurrency,
	)

	lambda.Start(func(ctx context.Context) (types.SweepResult, error) {
		return sweeper.Run(ctx)
	})
}
