package db

import (
	"context"

	"floodwatch/internal/types"
)

// UserRepository provides data access for the users table. The alert sweep
// only ever reads users; account management is owned by a separate service
// writing to the same table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// ListAlertEligible returns every user which the sweep should evaluate:
// notifications enabled, a registered push token, and at least one favorite
// reach. The eligibility filter lives in SQL so the sweep never pages
// through ineligible rows.
func (r *UserRepository) ListAlertEligible(ctx context.Context) ([]*types.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, notifications_enabled, push_token, preferred_unit,
		        favorite_reach_ids, created_at, updated_at
		 FROM users
		 WHERE notifications_enabled = TRUE
		   AND push_token IS NOT NULL
		   AND push_token <> ''
		   AND cardinality(favorite_reach_ids) > 0`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alert-eligible users", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		var (
			u    types.User
			unit *string
		)
		if err := rows.Scan(
			&u.ID,
			&u.NotificationsEnabled,
			&u.PushToken,
			&unit,
			&u.FavoriteReachIDs,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
		}
		// Stored unit values predate validation; reject anything that is
		// not a known unit so DisplayUnit falls back to the default.
		if unit != nil && types.IsValidUnit(*unit) {
			u.PreferredUnit = types.FlowUnit(*unit)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate user rows", err)
	}

	return users, nil
}
