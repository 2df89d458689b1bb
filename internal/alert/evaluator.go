// Package alert implements the flood-alert decision pipeline: threshold
// evaluation, dispatch deduplication, and push notification delivery.
package alert

import (
	"floodwatch/internal/types"
)

// Evaluator decides whether a reach's forecast warrants an alert by comparing
// the forecast peak against the reach's return-period thresholds.
//
// Forecast values arrive in CFS and thresholds in CMS; the peak is converted
// to CMS at comparison time. The scale divisor lowers thresholds in
// non-production environments so alerts fire on realistic test data; it is
// never applied to the forecast itself.
type Evaluator struct {
	scaleDivisor float64
}

// NewEvaluator creates an Evaluator with the given threshold scale divisor.
// A divisor that is zero or negative is treated as 1 (no scaling).
func NewEvaluator(scaleDivisor float64) *Evaluator {
	if scaleDivisor <= 0 {
		scaleDivisor = 1
	}
	return &Evaluator{scaleDivisor: scaleDivisor}
}

// Evaluate returns the alert decision for one reach, or nil when no alert
// should fire.
//
// The peak is the maximum valid flow across every extracted series. Threshold
// labels are scanned in ascending year order and the first strictly exceeded
// one wins, so a flow crossing both the 2-year and 10-year thresholds reports
// the 2-year flood. An empty threshold set or a forecast with no usable
// points never fires.
func (e *Evaluator) Evaluate(reachID string, series []types.FlowSeries, thresholds types.ReturnPeriodSet) *types.AlertDecision {
	if len(thresholds) == 0 {
		return nil
	}

	peakCFS, ok := peakFlow(series)
	if !ok {
		return nil
	}
	peakCMS := types.ConvertFlow(peakCFS, types.UnitCFS, types.UnitCMS)

	for _, years := range thresholds.Years() {
		threshold := thresholds[years]
		if !types.ValidFlow(threshold) {
			continue
		}
		if peakCMS > threshold/e.scaleDivisor {
			return &types.AlertDecision{
				ReachID:       reachID,
				PeakFlow:      peakCFS,
				CrossedYears:  years,
				ThresholdFlow: threshold,
			}
		}
	}
	return nil
}

// peakFlow returns the maximum valid flow across all series, in CFS.
// ok is false when no series contains a usable point.
func peakFlow(series []types.FlowSeries) (peak float64, ok bool) {
	for _, s := range series {
		for _, p := range s.Points {
			if !types.ValidFlow(p.Flow) {
				continue
			}
			if !ok || p.Flow > peak {
				peak = p.Flow
				ok = true
			}
		}
	}
	return peak, ok
}
