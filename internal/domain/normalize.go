package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RawRow is one loosely typed imported record keyed by column name. Values
// are strings when parsed from CSV and may be numbers or booleans when parsed
// from JSON or YAML.
type RawRow map[string]any

// Drop reasons reported for rows rejected during normalization.
const (
	DropMissingName  = "missing name"
	DropBadConsumers = "consumers not a non-negative number"
)

// DroppedRow identifies an input row that normalization rejected.
type DroppedRow struct {
	Index  int    `json:"index"` // zero-based position in the input
	Reason string `json:"reason"`
}

// ImportResult is the outcome of normalizing a full import.
type ImportResult struct {
	Stations  []Station
	Overrides FeederOverrides
	Dropped   []DroppedRow
}

var (
	feederKeys   = []string{"feeder", "bay", "feeder_name"}
	nameKeys     = []string{"name", "station", "substation"}
	consumerKeys = []string{"consumers", "consumer_count", "count"}
	outageKeys   = []string{"isOut", "outage"}
	overrideKeys = []string{"feederOff", "feeder_off", "feederOut"}
)

// newID generates identifiers for rows imported without one.
var newID = uuid.NewString

// NormalizeRows converts imported rows into canonical stations and seeds the
// feeder override map. Invalid rows are reported in Dropped, never as errors.
// When several rows of one feeder disagree on the override, the last one wins.
// A repeated ID is replaced by a fresh one so toggles stay unambiguous.
func NormalizeRows(rows []RawRow) ImportResult {
	res := ImportResult{
		Stations:  make([]Station, 0, len(rows)),
		Overrides: FeederOverrides{},
	}
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		st, reason, ok := NormalizeRow(row)
		if !ok {
			res.Dropped = append(res.Dropped, DroppedRow{Index: i, Reason: reason})
			continue
		}
		if _, dup := seen[st.ID]; dup {
			st.ID = newID()
		}
		seen[st.ID] = struct{}{}

		res.Stations = append(res.Stations, st)
		v, _ := firstPresent(row, overrideKeys)
		res.Overrides[st.Feeder] = parseFlag(v)
	}
	return res
}

// NormalizeRow resolves a single row into a Station. When the row must be
// dropped it returns false and the reason.
func NormalizeRow(row RawRow) (Station, string, bool) {
	name := ""
	if v, ok := firstPresent(row, nameKeys); ok {
		name = strings.TrimSpace(stringify(v))
	}
	if name == "" {
		return Station{}, DropMissingName, false
	}

	consumers := 0
	if v, ok := firstPresent(row, consumerKeys); ok {
		n, valid := parseCount(v)
		if !valid {
			return Station{}, DropBadConsumers, false
		}
		consumers = n
	}

	feeder := UnassignedFeeder
	if v, ok := firstPresent(row, feederKeys); ok {
		if f := strings.TrimSpace(stringify(v)); f != "" {
			feeder = f
		}
	}

	isOut := false
	if v, ok := firstPresent(row, outageKeys); ok {
		isOut = parseFlag(v)
	}

	id := ""
	if v, ok := row["id"]; ok && v != nil {
		id = strings.TrimSpace(stringify(v))
	}
	if id == "" {
		id = newID()
	}

	return Station{
		ID:        id,
		Feeder:    feeder,
		Name:      name,
		Consumers: consumers,
		IsOut:     isOut,
	}, "", true
}

// firstPresent returns the value of the first key present with a non-nil
// value. Empty strings count as present.
func firstPresent(row RawRow, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringify renders a loosely typed cell the way it would read in a CSV file.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// parseFlag applies the legacy boolean rule: true iff the lower-cased string
// form starts with "t".
func parseFlag(v any) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(stringify(v))), "t")
}

// parseCount coerces a consumer count. Blank strings count as 0; fractional
// values round to the nearest integer. Non-finite and negative values are
// rejected.
func parseCount(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case bool:
		if x {
			f = 1
		}
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		s := strings.TrimSpace(stringify(x))
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}
