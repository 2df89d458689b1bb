package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"floodwatch/internal/types"
)

// PushSender delivers one push message and returns the provider message ID.
// *external.FCMClient satisfies it.
type PushSender interface {
	Send(ctx context.Context, msg types.PushMessage) (string, error)
}

// Dispatcher turns an alert decision into a delivered push notification and a
// durable dispatch record.
type Dispatcher struct {
	sender PushSender
	guard  *DedupGuard
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender PushSender, guard *DedupGuard, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		guard:  guard,
		logger: logger,
	}
}

// Dispatch sends the alert to the user and records it for deduplication. The
// dispatch record is only written after a successful send, so a failed push
// stays eligible for the next sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, user *types.User, decision *types.AlertDecision, displayName string) error {
	msg := buildMessage(user, decision, displayName)

	msgID, err := d.sender.Send(ctx, msg)
	if err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "flood alert dispatched",
		"user_id", user.ID,
		"reach_id", decision.ReachID,
		"crossed_years", decision.CrossedYears,
		"message_id", msgID,
	)

	d.guard.Record(ctx, user.ID, decision.ReachID, msg.Body)
	return nil
}

// buildMessage renders the notification in the user's preferred unit. Flow
// values cross the pipeline in CFS (forecast) and CMS (thresholds); both are
// converted to the display unit here and nowhere else.
func buildMessage(user *types.User, decision *types.AlertDecision, displayName string) types.PushMessage {
	unit := user.DisplayUnit()
	peak := types.ConvertFlow(decision.PeakFlow, types.UnitCFS, unit)
	threshold := types.ConvertFlow(decision.ThresholdFlow, types.UnitCMS, unit)

	return types.PushMessage{
		Token: user.PushToken,
		Title: fmt.Sprintf("Flood alert: %s", displayName),
		Body: fmt.Sprintf("Forecast flow is expected to peak at %.1f %s, above the %d-year flood level of %.1f %s.",
			peak, unit, decision.CrossedYears, threshold, unit),
		Data: map[string]string{
			"reach_id":       decision.ReachID,
			"peak_flow":      strconv.FormatFloat(peak, 'f', 1, 64),
			"threshold_flow": strconv.FormatFloat(threshold, 'f', 1, 64),
			"crossed_years":  strconv.Itoa(decision.CrossedYears),
			"unit":           string(unit),
		},
	}
}
