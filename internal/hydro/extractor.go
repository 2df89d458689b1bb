// Package hydro is the gateway to the upstream hydrologic forecast API.
//
// The upstream payloads are loosely typed and have drifted across API
// versions: the same forecast document may carry a short-range series, a
// medium-range ensemble with a mean, bare ensemble members, or one of two
// legacy flat shapes. extractor.go normalizes all of them into flat
// types.FlowSeries values; returnperiod.go parses the variable-shaped flood
// frequency thresholds; client.go issues the HTTP reads.
package hydro

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"floodwatch/internal/types"
)

// Series container keys used by the current upstream API. A document holds
// one or both horizons depending on the product requested.
const (
	keyShortRange  = "shortRange"
	keyMediumRange = "mediumRange"
)

// ExtractSeriesSet normalizes a raw forecast document into flat series of
// (time, flow) points in CFS, in priority order:
//
//  1. shortRange.series.data — the primary near-term product.
//  2. mediumRange.mean.data — the aggregate extended product.
//     Both are returned when both are present; peak detection considers
//     every available series.
//  3. If neither primary product yields points, the first non-empty
//     ensemble-member series under either horizon, in lexicographic key
//     order.
//  4. Failing that, the legacy flat shapes: a top-level "data" array, then a
//     top-level "forecast" array.
//
// Within each candidate, points whose value is null, non-numeric, NaN, or an
// upstream sentinel are dropped before the candidate is accepted; a candidate
// left with no points is treated as absent and the next fallback is tried.
//
// The extractor never returns an error: a malformed or unusable document
// yields an empty result, which downstream treats as "no forecast available"
// rather than a failure.
func ExtractSeriesSet(raw json.RawMessage) []types.FlowSeries {
	if len(raw) == 0 {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	var out []types.FlowSeries
	if s, ok := extractShortRange(doc); ok {
		out = append(out, s)
	}
	if s, ok := extractMediumRangeMean(doc); ok {
		out = append(out, s)
	}
	if len(out) > 0 {
		return out
	}

	for _, fallback := range []func(map[string]any) (types.FlowSeries, bool){
		extractFirstEnsembleMember,
		extractLegacyData,
		extractLegacyForecast,
	} {
		if s, ok := fallback(doc); ok {
			return []types.FlowSeries{s}
		}
	}
	return nil
}

// extractShortRange pulls shortRange.series.data.
func extractShortRange(doc map[string]any) (types.FlowSeries, bool) {
	horizon, ok := doc[keyShortRange].(map[string]any)
	if !ok {
		return types.FlowSeries{}, false
	}
	series, ok := horizon["series"].(map[string]any)
	if !ok {
		return types.FlowSeries{}, false
	}
	points := parsePoints(series["data"])
	if len(points) == 0 {
		return types.FlowSeries{}, false
	}
	return types.FlowSeries{Name: "shortRange", Points: points}, true
}

// extractMediumRangeMean pulls mediumRange.mean.data.
func extractMediumRangeMean(doc map[string]any) (types.FlowSeries, bool) {
	horizon, ok := doc[keyMediumRange].(map[string]any)
	if !ok {
		return types.FlowSeries{}, false
	}
	mean, ok := horizon["mean"].(map[string]any)
	if !ok {
		return types.FlowSeries{}, false
	}
	points := parsePoints(mean["data"])
	if len(points) == 0 {
		return types.FlowSeries{}, false
	}
	return types.FlowSeries{Name: "mediumRange.mean", Points: points}, true
}

// extractFirstEnsembleMember scans both horizons for bare ensemble member
// series (keys like "member01") and returns the first non-empty one in
// lexicographic key order, so extraction is deterministic regardless of JSON
// map iteration order.
func extractFirstEnsembleMember(doc map[string]any) (types.FlowSeries, bool) {
	for _, horizonKey := range []string{keyShortRange, keyMediumRange} {
		horizon, ok := doc[horizonKey].(map[string]any)
		if !ok {
			continue
		}

		memberKeys := make([]string, 0, len(horizon))
		for k := range horizon {
			if strings.HasPrefix(k, "member") {
				memberKeys = append(memberKeys, k)
			}
		}
		sort.Strings(memberKeys)

		for _, k := range memberKeys {
			member, ok := horizon[k].(map[string]any)
			if !ok {
				continue
			}
			points := parsePoints(member["data"])
			if len(points) > 0 {
				return types.FlowSeries{Name: horizonKey + "." + k, Points: points}, true
			}
		}
	}
	return types.FlowSeries{}, false
}

// extractLegacyData handles the oldest flat shape: a top-level "data" array.
func extractLegacyData(doc map[string]any) (types.FlowSeries, bool) {
	points := parsePoints(doc["data"])
	if len(points) == 0 {
		return types.FlowSeries{}, false
	}
	return types.FlowSeries{Name: "data", Points: points}, true
}

// extractLegacyForecast handles the other flat shape: a top-level "forecast"
// array with "timestamp"/"value" field names.
func extractLegacyForecast(doc map[string]any) (types.FlowSeries, bool) {
	points := parsePoints(doc["forecast"])
	if len(points) == 0 {
		return types.FlowSeries{}, false
	}
	return types.FlowSeries{Name: "forecast", Points: points}, true
}

// parsePoints converts an untyped candidate array into valid flow points.
// Entries that are not objects, have unparseable times, or carry null,
// non-numeric, NaN, or sentinel flow values are dropped individually.
func parsePoints(v any) []types.FlowPoint {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}

	points := make([]types.FlowPoint, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}

		ts, ok := parseTimeField(obj)
		if !ok {
			continue
		}
		flow, ok := parseFlowField(obj)
		if !ok || !types.ValidFlow(flow) {
			continue
		}

		points = append(points, types.FlowPoint{ValidTime: ts, Flow: flow})
	}
	return points
}

// parseTimeField reads the point timestamp under either field spelling.
func parseTimeField(obj map[string]any) (time.Time, bool) {
	for _, field := range []string{"validTime", "timestamp"} {
		s, ok := obj[field].(string)
		if !ok {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseFlowField reads the flow value under either field spelling. JSON
// numbers decode to float64; some upstream versions quote the value, so
// numeric strings are accepted too.
func parseFlowField(obj map[string]any) (float64, bool) {
	for _, field := range []string{"flow", "value"} {
		raw, present := obj[field]
		if !present || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
