// Package scheduler implements the scheduled alert sweep: the periodic job
// that evaluates every alert-eligible user's favorite reaches against current
// flood forecasts and dispatches push notifications for threshold crossings.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"floodwatch/internal/alert"
	"floodwatch/internal/hydro"
	"floodwatch/internal/observability"
	"floodwatch/internal/types"
)

// UserLister is the persistence surface the sweep needs.
// *db.UserRepository satisfies it.
type UserLister interface {
	ListAlertEligible(ctx context.Context) ([]*types.User, error)
}

// ConditionsFetcher retrieves the forecast, thresholds, and display name for
// one reach. *hydro.Client satisfies it.
type ConditionsFetcher interface {
	FetchReachConditions(ctx context.Context, reachID string) *hydro.ReachConditions
}

// Sweeper runs one alert sweep across all eligible users.
type Sweeper struct {
	users       UserLister
	conditions  ConditionsFetcher
	evaluator   *alert.Evaluator
	guard       *alert.DedupGuard
	dispatcher  *alert.Dispatcher
	metrics     observability.SweepMetrics
	concurrency int
	logger      *slog.Logger
}

// SweeperConfig wires a Sweeper's collaborators.
type SweeperConfig struct {
	Users       UserLister
	Conditions  ConditionsFetcher
	Evaluator   *alert.Evaluator
	Guard       *alert.DedupGuard
	Dispatcher  *alert.Dispatcher
	Metrics     observability.SweepMetrics
	Concurrency int
	Logger      *slog.Logger
}

// NewSweeper creates a Sweeper. Concurrency below 1 is raised to 1; a nil
// Metrics becomes a no-op.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopSweepMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{
		users:       cfg.Users,
		conditions:  cfg.Conditions,
		evaluator:   cfg.Evaluator,
		guard:       cfg.Guard,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Run executes one sweep and returns its aggregate result.
//
// The only fatal failure is the initial user listing: without it there is
// nothing to sweep. Everything after that is isolated per user and per reach:
// an upstream outage on one reach or a rejected push for one user increments
// Errors and the sweep moves on. Users are processed concurrently up to the
// configured limit; each user's reaches are evaluated sequentially so one
// user cannot monopolize the upstream API.
func (s *Sweeper) Run(ctx context.Context) (types.SweepResult, error) {
	start := time.Now()

	users, err := s.users.ListAlertEligible(ctx)
	if err != nil {
		return types.SweepResult{}, err
	}

	s.logger.InfoContext(ctx, "alert sweep started",
		"eligible_users", len(users),
		"concurrency", s.concurrency,
	)

	var (
		mu     sync.Mutex
		result types.SweepResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, user := range users {
		user := user
		// The listing query should only return eligible users; re-check so a
		// drifting query cannot push to disabled or token-less accounts.
		if !user.AlertEligible() {
			s.logger.WarnContext(ctx, "ineligible user returned by eligibility query",
				"user_id", user.ID,
			)
			continue
		}
		g.Go(func() error {
			sent, errs := s.sweepUser(gctx, user)

			mu.Lock()
			result.UsersChecked++
			result.AlertsSent += sent
			result.Errors += errs
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures are tallied in the result.
	_ = g.Wait()

	duration := time.Since(start)
	s.logger.InfoContext(ctx, "alert sweep finished",
		"users_checked", result.UsersChecked,
		"alerts_sent", result.AlertsSent,
		"errors", result.Errors,
		"duration_ms", duration.Milliseconds(),
	)
	s.metrics.RecordSweep(ctx, result, duration)

	return result, nil
}

// sweepUser evaluates every favorite reach for one user and returns the
// number of alerts sent and errors encountered. A panic anywhere in the
// user's evaluation is contained here and counted as one error.
func (s *Sweeper) sweepUser(ctx context.Context, user *types.User) (sent, errs int) {
	defer func() {
		if r := recover(); r != nil {
			errs++
			s.logger.ErrorContext(ctx, "panic during user sweep",
				"user_id", user.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	for _, reachID := range user.FavoriteReachIDs {
		rc := s.conditions.FetchReachConditions(ctx, reachID)
		if rc.FetchErr != nil {
			errs++
			continue
		}

		decision := s.evaluator.Evaluate(reachID, rc.Series, rc.Thresholds)
		if decision == nil {
			continue
		}

		if s.guard.RecentlyDispatched(ctx, user.ID, reachID) {
			s.logger.DebugContext(ctx, "alert suppressed by cool-down",
				"user_id", user.ID,
				"reach_id", reachID,
			)
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, user, decision, rc.DisplayName); err != nil {
			errs++
			s.logger.ErrorContext(ctx, "alert dispatch failed",
				"user_id", user.ID,
				"reach_id", reachID,
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent, errs
}
