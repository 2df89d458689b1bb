package hydro

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSeriesSet_ShortRangePrimary(t *testing.T) {
	raw := json.RawMessage(`{
		"shortRange": {"series": {"data": [
			{"validTime": "2026-08-31T12:00:00Z", "flow": 120.5},
			{"validTime": "2026-08-31T13:00:00Z", "flow": 131.0}
		]}}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	assert.Equal(t, "shortRange", series[0].Name)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, 120.5, series[0].Points[0].Flow)
}

func TestExtractSeriesSet_BothPrimariesReturned(t *testing.T) {
	raw := json.RawMessage(`{
		"shortRange": {"series": {"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": 100}]}},
		"mediumRange": {"mean": {"data": [{"validTime": "2026-09-02T12:00:00Z", "flow": 900}]}}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 2, "peak detection needs every available series")
	assert.Equal(t, "shortRange", series[0].Name)
	assert.Equal(t, "mediumRange.mean", series[1].Name)
}

func TestExtractSeriesSet_MeanFallback(t *testing.T) {
	raw := json.RawMessage(`{
		"mediumRange": {"mean": {"data": [{"validTime": "2026-09-02T12:00:00Z", "flow": 450}]}}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	assert.Equal(t, "mediumRange.mean", series[0].Name)
}

func TestExtractSeriesSet_EnsembleMemberFallback(t *testing.T) {
	// No primary series and no mean: only bare ensemble members. The first
	// non-empty member in lexicographic order must be chosen.
	raw := json.RawMessage(`{
		"mediumRange": {
			"member03": {"data": [{"validTime": "2026-09-02T12:00:00Z", "flow": 300}]},
			"member01": {"data": []},
			"member02": {"data": [{"validTime": "2026-09-02T12:00:00Z", "flow": 200}]}
		}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	assert.Equal(t, "mediumRange.member02", series[0].Name)
	assert.Equal(t, 200.0, series[0].Points[0].Flow)
}

func TestExtractSeriesSet_LegacyShapes(t *testing.T) {
	flat := json.RawMessage(`{"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": 77}]}`)
	series := ExtractSeriesSet(flat)
	require.Len(t, series, 1)
	assert.Equal(t, "data", series[0].Name)

	legacy := json.RawMessage(`{"forecast": [{"timestamp": "2026-08-31T12:00:00Z", "value": 88}]}`)
	series = ExtractSeriesSet(legacy)
	require.Len(t, series, 1)
	assert.Equal(t, "forecast", series[0].Name)
	assert.Equal(t, 88.0, series[0].Points[0].Flow)
}

func TestExtractSeriesSet_PrimaryWinsOverFallbacks(t *testing.T) {
	raw := json.RawMessage(`{
		"shortRange": {"series": {"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": 10}]}},
		"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": 999}]
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	assert.Equal(t, "shortRange", series[0].Name)
}

func TestExtractSeriesSet_FiltersInvalidPoints(t *testing.T) {
	raw := json.RawMessage(`{
		"shortRange": {"series": {"data": [
			{"validTime": "2026-08-31T12:00:00Z", "flow": null},
			{"validTime": "2026-08-31T13:00:00Z", "flow": "not-a-number"},
			{"validTime": "2026-08-31T14:00:00Z", "flow": -9999},
			{"validTime": "not-a-time", "flow": 50},
			{"validTime": "2026-08-31T15:00:00Z", "flow": "42.5"},
			{"validTime": "2026-08-31T16:00:00Z", "flow": 60}
		]}}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, 42.5, series[0].Points[0].Flow, "quoted numeric values are accepted")
	assert.Equal(t, 60.0, series[0].Points[1].Flow)
}

func TestExtractSeriesSet_AllPointsInvalidTriesNextFallback(t *testing.T) {
	// The short-range candidate exists but every point is unusable, so the
	// extractor must move on to the ensemble member.
	raw := json.RawMessage(`{
		"shortRange": {
			"series": {"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": -9999}]},
			"member01": {"data": [{"validTime": "2026-08-31T12:00:00Z", "flow": 123}]}
		}
	}`)

	series := ExtractSeriesSet(raw)
	require.Len(t, series, 1)
	assert.Equal(t, "shortRange.member01", series[0].Name)
}

func TestExtractSeriesSet_Unusable(t *testing.T) {
	assert.Empty(t, ExtractSeriesSet(nil))
	assert.Empty(t, ExtractSeriesSet(json.RawMessage(`not json`)))
	assert.Empty(t, ExtractSeriesSet(json.RawMessage(`{}`)))
	assert.Empty(t, ExtractSeriesSet(json.RawMessage(`{"shortRange": "wrong shape"}`)))
	assert.Empty(t, ExtractSeriesSet(json.RawMessage(`{"data": [{"validTime": "2026-08-31T12:00:00Z"}]}`)))
}
