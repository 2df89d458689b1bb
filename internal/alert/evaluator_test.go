package alert

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodwatch/internal/types"
)

func seriesOf(flows ...float64) []types.FlowSeries {
	pts := make([]types.FlowPoint, len(flows))
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	for i, f := range flows {
		pts[i] = types.FlowPoint{ValidTime: base.Add(time.Duration(i) * time.Hour), Flow: f}
	}
	return []types.FlowSeries{{Name: "shortRange", Points: pts}}
}

func TestEvaluate_FirstExceededThresholdWins(t *testing.T) {
	// 1200 CFS ≈ 33.98 CMS: above the 2-year level (30) and below the
	// 5-year level (40). The smallest exceeded label must be reported.
	ev := NewEvaluator(1)
	thresholds := types.ReturnPeriodSet{2: 30, 5: 40}

	decision := ev.Evaluate("1074650", seriesOf(800, 1200, 950), thresholds)
	require.NotNil(t, decision)
	assert.Equal(t, "1074650", decision.ReachID)
	assert.Equal(t, 2, decision.CrossedYears)
	assert.Equal(t, 1200.0, decision.PeakFlow)
	assert.Equal(t, 30.0, decision.ThresholdFlow)
}

func TestEvaluate_SmallestYearWinsEvenWhenAllCrossed(t *testing.T) {
	ev := NewEvaluator(1)
	thresholds := types.ReturnPeriodSet{100: 5, 10: 3, 2: 1}

	decision := ev.Evaluate("r1", seriesOf(1000), thresholds)
	require.NotNil(t, decision)
	assert.Equal(t, 2, decision.CrossedYears)
}

func TestEvaluate_ScaleDivisorLowersThresholdsOnly(t *testing.T) {
	// 100 CFS ≈ 2.83 CMS is far below a 30 CMS threshold, but with the
	// non-production divisor of 25 the effective level is 1.2 CMS.
	thresholds := types.ReturnPeriodSet{2: 30}

	assert.Nil(t, NewEvaluator(1).Evaluate("r1", seriesOf(100), thresholds))

	decision := NewEvaluator(25).Evaluate("r1", seriesOf(100), thresholds)
	require.NotNil(t, decision)
	assert.Equal(t, 2, decision.CrossedYears)
	assert.Equal(t, 30.0, decision.ThresholdFlow, "recorded threshold stays unscaled")
	assert.Equal(t, 100.0, decision.PeakFlow, "forecast values are never scaled")
}

func TestEvaluate_StrictExceedance(t *testing.T) {
	// Exactly at the threshold does not fire.
	ev := NewEvaluator(1)
	exact := 30.0 / types.CFSToCMS
	assert.Nil(t, ev.Evaluate("r1", seriesOf(exact), types.ReturnPeriodSet{2: 30}))

	decision := ev.Evaluate("r1", seriesOf(exact*1.0001), types.ReturnPeriodSet{2: 30})
	assert.NotNil(t, decision)
}

func TestEvaluate_PeakSpansAllSeries(t *testing.T) {
	ev := NewEvaluator(1)
	series := []types.FlowSeries{
		{Name: "shortRange", Points: []types.FlowPoint{{Flow: 500}}},
		{Name: "mediumRange.mean", Points: []types.FlowPoint{{Flow: 1500}}},
	}

	decision := ev.Evaluate("r1", series, types.ReturnPeriodSet{2: 30})
	require.NotNil(t, decision)
	assert.Equal(t, 1500.0, decision.PeakFlow)
}

func TestEvaluate_NoAlertCases(t *testing.T) {
	ev := NewEvaluator(1)

	t.Run("empty threshold set", func(t *testing.T) {
		assert.Nil(t, ev.Evaluate("r1", seriesOf(1e9), types.ReturnPeriodSet{}))
	})

	t.Run("no series", func(t *testing.T) {
		assert.Nil(t, ev.Evaluate("r1", nil, types.ReturnPeriodSet{2: 30}))
	})

	t.Run("only invalid points", func(t *testing.T) {
		series := []types.FlowSeries{{Name: "shortRange", Points: []types.FlowPoint{
			{Flow: -9999},
			{Flow: math.NaN()},
		}}}
		assert.Nil(t, ev.Evaluate("r1", series, types.ReturnPeriodSet{2: 30}))
	})

	t.Run("below every threshold", func(t *testing.T) {
		assert.Nil(t, ev.Evaluate("r1", seriesOf(10), types.ReturnPeriodSet{2: 30, 5: 40}))
	})
}

func TestEvaluate_SkipsInvalidThresholdValues(t *testing.T) {
	ev := NewEvaluator(1)
	thresholds := types.ReturnPeriodSet{2: math.NaN(), 5: 30}

	decision := ev.Evaluate("r1", seriesOf(1200), thresholds)
	require.NotNil(t, decision)
	assert.Equal(t, 5, decision.CrossedYears)
}
