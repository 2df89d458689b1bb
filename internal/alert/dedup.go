package alert

import (
	"context"
	"log/slog"
	"time"

	"floodwatch/internal/types"
)

// DispatchStore is the persistence surface the dedup guard needs.
// *db.DispatchRepository satisfies it.
type DispatchStore interface {
	Create(ctx context.Context, record *types.DispatchRecord) error
	MostRecentSince(ctx context.Context, userID, reachID string, cutoff time.Time) (*types.DispatchRecord, error)
}

// DedupGuard enforces the per-(user, reach) cool-down between alerts. A flood
// condition that persists across sweeps must not page the same user every few
// minutes.
type DedupGuard struct {
	store  DispatchStore
	window time.Duration
	clock  types.Clock
	logger *slog.Logger
}

// NewDedupGuard creates a DedupGuard with the given cool-down window.
func NewDedupGuard(store DispatchStore, window time.Duration, clock types.Clock, logger *slog.Logger) *DedupGuard {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupGuard{
		store:  store,
		window: window,
		clock:  clock,
		logger: logger,
	}
}

// RecentlyDispatched reports whether an alert for this (user, reach) pair was
// sent within the cool-down window. The guard fails open: if the store read
// errors, a warning is logged and false is returned, so a broken dedup lookup
// delays no flood warning. The worst case is a duplicate push.
func (g *DedupGuard) RecentlyDispatched(ctx context.Context, userID, reachID string) bool {
	cutoff := g.clock.Now().Add(-g.window)

	rec, err := g.store.MostRecentSince(ctx, userID, reachID, cutoff)
	if err != nil {
		g.logger.WarnContext(ctx, "dedup lookup failed, allowing dispatch",
			"user_id", userID,
			"reach_id", reachID,
			"error", err,
		)
		return false
	}
	return rec != nil
}

// Record persists the dispatch so later sweeps within the window suppress it.
// Write failures are logged and swallowed: the push already went out, and
// failing the whole evaluation over bookkeeping would be worse than the
// possible duplicate on the next sweep.
func (g *DedupGuard) Record(ctx context.Context, userID, reachID, payloadSummary string) {
	rec := &types.DispatchRecord{
		UserID:         userID,
		ReachID:        reachID,
		SentAt:         g.clock.Now(),
		PayloadSummary: payloadSummary,
	}

	if err := g.store.Create(ctx, rec); err != nil {
		g.logger.ErrorContext(ctx, "failed to record dispatch",
			"user_id", userID,
			"reach_id", reachID,
			"error", err,
		)
	}
}
