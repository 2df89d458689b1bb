package types

import (
	"math"
	"sort"
	"time"
)

// FlowUnit identifies one of the two streamflow measurement systems used by
// the platform. Upstream forecast feeds report flow in cubic feet per second;
// historical return-period thresholds are published in cubic meters per second.
type FlowUnit string

const (
	UnitCFS FlowUnit = "cfs" // cubic feet per second (forecast side)
	UnitCMS FlowUnit = "cms" // cubic meters per second (threshold side)
)

// CFSToCMS is the only permitted conversion factor between the two unit
// systems: 1 cubic foot per second = 0.0283168 cubic meters per second.
const CFSToCMS = 0.0283168

// ConvertFlow converts a flow value between the two unit systems.
// Converting a value to its own unit is the identity.
func ConvertFlow(value float64, from, to FlowUnit) float64 {
	if from == to {
		return value
	}
	if from == UnitCFS && to == UnitCMS {
		return value * CFSToCMS
	}
	return value / CFSToCMS
}

// IsValidUnit reports whether s names a known flow unit.
func IsValidUnit(s string) bool {
	switch FlowUnit(s) {
	case UnitCFS, UnitCMS:
		return true
	}
	return false
}

// FlowPoint is a single forecast value at an instant, always in CFS.
type FlowPoint struct {
	ValidTime time.Time `json:"valid_time"`
	Flow      float64   `json:"flow"`
}

// FlowSeries is an ordered sequence of forecast points for one reach,
// labeled with the upstream series it was extracted from (e.g. "shortRange",
// "mediumRange.mean", "mediumRange.member03").
type FlowSeries struct {
	Name   string      `json:"name"`
	Points []FlowPoint `json:"points"`
}

// Empty reports whether the series contains no points.
func (s FlowSeries) Empty() bool {
	return len(s.Points) == 0
}

// ReturnPeriodSet maps a flood-frequency label in years (2, 5, 10, 25, 50,
// 100) to the corresponding flow value in CMS. An empty set means the reach
// has no known thresholds and must never fire an alert.
type ReturnPeriodSet map[int]float64

// Years returns the labels present in the set in ascending order.
// Threshold evaluation scans labels smallest-first, so the 2-year flood is
// always considered before the 100-year flood.
func (rp ReturnPeriodSet) Years() []int {
	years := make([]int, 0, len(rp))
	for y := range rp {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// AlertDecision is the outcome of evaluating one reach's forecast against its
// return-period thresholds. It is ephemeral: produced once per (user, reach)
// evaluation and never persisted directly.
type AlertDecision struct {
	ReachID       string  `json:"reach_id"`
	PeakFlow      float64 `json:"peak_flow"`      // CFS
	CrossedYears  int     `json:"crossed_years"`  // return-period label that fired
	ThresholdFlow float64 `json:"threshold_flow"` // CMS, unscaled
}

// ValidFlow reports whether v is a usable flow value. NaN and infinities are
// rejected, as are negative values: the upstream model encodes missing data
// with a -9999 sentinel.
func ValidFlow(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0
}
