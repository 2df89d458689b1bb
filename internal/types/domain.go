package types

import "time"

// User is a subscriber eligible for flood alerts. Only the fields the alert
// pipeline needs are modeled here; profile and authentication data live with
// the account service that owns the users table.
type User struct {
	ID                   string   `json:"id" db:"id"`
	NotificationsEnabled bool     `json:"notifications_enabled" db:"notifications_enabled"`
	PushToken            string   `json:"-" db:"push_token"`
	PreferredUnit        FlowUnit `json:"preferred_unit" db:"preferred_unit"`
	FavoriteReachIDs     []string `json:"favorite_reach_ids" db:"favorite_reach_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AlertEligible reports whether the sweep should evaluate this user at all:
// notifications on, a push token registered, and at least one favorite reach.
func (u *User) AlertEligible() bool {
	return u.NotificationsEnabled && u.PushToken != "" && len(u.FavoriteReachIDs) > 0
}

// DisplayUnit returns the user's preferred unit, defaulting to CFS when the
// stored value is empty or unrecognized.
func (u *User) DisplayUnit() FlowUnit {
	if u.PreferredUnit == UnitCMS {
		return UnitCMS
	}
	return UnitCFS
}

// DispatchRecord is the durable artifact of a sent alert. It exists solely to
// answer "was there a dispatch for this (user, reach) pair within the
// cool-down window?" on later sweeps.
type DispatchRecord struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ReachID        string    `json:"reach_id" db:"reach_id"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
	PayloadSummary string    `json:"payload_summary" db:"payload_summary"`
}

// SweepResult aggregates the outcome of one alert sweep.
type SweepResult struct {
	UsersChecked int `json:"users_checked"`
	AlertsSent   int `json:"alerts_sent"`
	Errors       int `json:"errors"`
}

// PushMessage is the payload handed to the push transport. Delivery mechanics
// beyond this contract are opaque to the alert pipeline.
type PushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
