package hydro

import (
	"encoding/json"
	"strconv"
	"strings"

	"floodwatch/internal/types"
)

// returnPeriodPrefix is the field naming pattern for flood-frequency
// thresholds in the upstream response: returnPeriod_2, returnPeriod_100, ...
// The numeric suffix is the frequency label in years; the value is a flow in
// CMS.
const returnPeriodPrefix = "returnPeriod_"

// ParseReturnPeriods extracts the return-period threshold set from a raw
// upstream response. The endpoint has returned both a bare object and an
// array of objects over its lifetime; both are accepted, with the array form
// preferred and its first element used.
//
// Fields whose value is not numeric, or whose suffix does not parse as an
// integer, are skipped. An empty body, empty array, or object with no
// matching fields all produce an empty set: "no thresholds known for this
// reach" is a valid outcome, not an error.
func ParseReturnPeriods(raw json.RawMessage) types.ReturnPeriodSet {
	set := types.ReturnPeriodSet{}
	if len(raw) == 0 {
		return set
	}

	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return set
		}
		return scanReturnPeriodFields(arr[0])
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return scanReturnPeriodFields(obj)
	}

	return set
}

// scanReturnPeriodFields collects every well-formed returnPeriod_<N> field.
func scanReturnPeriodFields(obj map[string]any) types.ReturnPeriodSet {
	set := types.ReturnPeriodSet{}
	for field, raw := range obj {
		if !strings.HasPrefix(field, returnPeriodPrefix) {
			continue
		}

		years, err := strconv.Atoi(strings.TrimPrefix(field, returnPeriodPrefix))
		if err != nil {
			continue
		}

		flow, ok := raw.(float64)
		if !ok {
			continue
		}

		set[years] = flow
	}
	return set
}
