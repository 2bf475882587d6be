package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedSnapshot marks a publish body that cannot be stored.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// maxSnapshotValue bounds every published field so counts stay within int
// range after rounding. It matches the cap applied to imported consumers.
const maxSnapshotValue = math.MaxInt32

// Snapshot is the last published aggregate, as read back by dashboards.
// UpdatedAt is nil until something has been published.
type Snapshot struct {
	Affected  int        `json:"affected"`
	Total     int        `json:"total"`
	Healthy   int        `json:"healthy"`
	Pct       float64    `json:"pct"`
	SubsOff   int        `json:"subsOff"`
	SubsOn    int        `json:"subsOn"`
	SubsTotal int        `json:"subsTotal"`
	OffPct    float64    `json:"offPct"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// SnapshotInput is a publish request. Any field may be omitted and is then
// derived from the others by CompleteSnapshot. Counts are accepted as JSON
// numbers of any form and rounded.
type SnapshotInput struct {
	Affected  *float64 `json:"affected,omitempty"`
	Total     *float64 `json:"total,omitempty"`
	Healthy   *float64 `json:"healthy,omitempty"`
	Pct       *float64 `json:"pct,omitempty"`
	SubsOff   *float64 `json:"subsOff,omitempty"`
	SubsOn    *float64 `json:"subsOn,omitempty"`
	SubsTotal *float64 `json:"subsTotal,omitempty"`
	OffPct    *float64 `json:"offPct,omitempty"`
}

// ParseSnapshotInput decodes a publish body. The body must be a single JSON
// object whose known fields are numbers; anything else is malformed.
func ParseSnapshotInput(data []byte) (SnapshotInput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return SnapshotInput{}, fmt.Errorf("%w: body must be a JSON object", ErrMalformedSnapshot)
	}
	var in SnapshotInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return SnapshotInput{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return in, nil
}

// SnapshotFromTotals builds a fully populated publish request from totals.
func SnapshotFromTotals(t Totals) SnapshotInput {
	return SnapshotInput{
		Affected:  num(t.Affected),
		Total:     num(t.Total),
		Healthy:   num(t.Healthy),
		Pct:       &t.Pct,
		SubsOff:   num(t.SubsOff),
		SubsOn:    num(t.SubsOn),
		SubsTotal: num(t.SubsTotal),
		OffPct:    &t.OffPct,
	}
}

// CompleteSnapshot fills omitted fields using the same formulas as the
// aggregation engine and stamps UpdatedAt with the current time:
//
//	total     = affected + healthy      (when total is omitted)
//	healthy   = total - affected
//	pct       = round1(affected / total * 100)
//	subsTotal = subsOff + subsOn        (when subsTotal is omitted)
//	subsOn    = subsTotal - subsOff
//	offPct    = round1(subsOff / subsTotal * 100)
//
// Negative or oversized values, affected above total and subsOff above
// subsTotal are rejected with ErrMalformedSnapshot.
func CompleteSnapshot(in SnapshotInput) (Snapshot, error) {
	for name, v := range map[string]*float64{
		"affected": in.Affected, "total": in.Total, "healthy": in.Healthy, "pct": in.Pct,
		"subsOff": in.SubsOff, "subsOn": in.SubsOn, "subsTotal": in.SubsTotal, "offPct": in.OffPct,
	} {
		if v != nil && (*v < 0 || *v > maxSnapshotValue || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return Snapshot{}, fmt.Errorf("%w: %s must be a number between 0 and %d", ErrMalformedSnapshot, name, maxSnapshotValue)
		}
	}

	affected, total, healthy := count(in.Affected), count(in.Total), count(in.Healthy)
	if in.Total == nil && in.Affected != nil && in.Healthy != nil {
		total = affected + healthy
	}
	if in.Healthy == nil {
		healthy = total - affected
	}
	if affected > total {
		return Snapshot{}, fmt.Errorf("%w: affected %d exceeds total %d", ErrMalformedSnapshot, affected, total)
	}

	subsOff, subsOn, subsTotal := count(in.SubsOff), count(in.SubsOn), count(in.SubsTotal)
	if in.SubsTotal == nil && in.SubsOff != nil && in.SubsOn != nil {
		subsTotal = subsOff + subsOn
	}
	if in.SubsOn == nil {
		subsOn = subsTotal - subsOff
	}
	if subsOff > subsTotal {
		return Snapshot{}, fmt.Errorf("%w: subsOff %d exceeds subsTotal %d", ErrMalformedSnapshot, subsOff, subsTotal)
	}

	pct := RoundPct(affected, total)
	if in.Pct != nil {
		pct = *in.Pct
	}
	offPct := RoundPct(subsOff, subsTotal)
	if in.OffPct != nil {
		offPct = *in.OffPct
	}

	now := clock.Now().UTC()
	return Snapshot{
		Affected:  affected,
		Total:     total,
		Healthy:   healthy,
		Pct:       pct,
		SubsOff:   subsOff,
		SubsOn:    subsOn,
		SubsTotal: subsTotal,
		OffPct:    offPct,
		UpdatedAt: &now,
	}, nil
}

func num(n int) *float64 {
	f := float64(n)
	return &f
}

func count(v *float64) int {
	if v == nil {
		return 0
	}
	return int(math.Round(*v))
}
