package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"floodwatch/internal/types"
)

// DispatchRepository provides access to the dispatch_records table, the
// append-only log of sent alerts. Records are written once after a successful
// push send and read only to answer cool-down queries; nothing updates them
// in place.
type DispatchRepository struct {
	db DBTX
}

// NewDispatchRepository creates a new DispatchRepository backed by the given
// database connection (pool or transaction).
func NewDispatchRepository(db DBTX) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create inserts a new dispatch record. If the ID is empty a prefixed UUID is
// generated. SentAt defaults to NOW() when zero.
func (r *DispatchRepository) Create(ctx context.Context, rec *types.DispatchRecord) error {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("disp_%s", uuid.NewString())
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO dispatch_records (id, user_id, reach_id, sent_at, payload_summary)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()), $5)`,
		rec.ID,
		rec.UserID,
		rec.ReachID,
		nilIfZeroTime(rec.SentAt),
		rec.PayloadSummary,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create dispatch record", err)
	}
	return nil
}

// MostRecentSince returns the newest dispatch record for the (user, reach)
// pair with sent_at strictly after the given cutoff, or nil if none exists.
// A nil result with a nil error is the normal "no recent dispatch" outcome.
func (r *DispatchRepository) MostRecentSince(ctx context.Context, userID, reachID string, cutoff time.Time) (*types.DispatchRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, reach_id, sent_at, payload_summary
		 FROM dispatch_records
		 WHERE user_id = $1 AND reach_id = $2 AND sent_at > $3
		 ORDER BY sent_at DESC
		 LIMIT 1`,
		userID,
		reachID,
		cutoff,
	)

	var rec types.DispatchRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ReachID, &rec.SentAt, &rec.PayloadSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query dispatch records", err)
	}
	return &rec, nil
}

// nilIfZeroTime returns nil for the zero time so SQL COALESCE defaults apply.
func nilIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
