package domain

import (
	"math"
	"slices"
)

// StationStatus is a station together with its effective outage status.
type StationStatus struct {
	Station
	EffOut bool `json:"effOut"`
}

// FeederGroup is the derived roll-up of every station on one feeder.
type FeederGroup struct {
	Name     string          `json:"name"`
	Off      bool            `json:"off"` // feeder override flag
	Stations []StationStatus `json:"stations"`
	Total    int             `json:"total"`
	Affected int             `json:"affected"`
	Healthy  int             `json:"healthy"`
	Pct      float64         `json:"pct"`
}

// Totals are the global consumer and station statistics.
type Totals struct {
	Total    int     `json:"total"`
	Affected int     `json:"affected"`
	Healthy  int     `json:"healthy"`
	Pct      float64 `json:"pct"`

	SubsTotal int     `json:"subsTotal"`
	SubsOff   int     `json:"subsOff"`
	SubsOn    int     `json:"subsOn"`
	OffPct    float64 `json:"offPct"`
}

// Aggregation is the output of the engine: feeders in display order plus
// the global totals.
type Aggregation struct {
	Feeders []FeederGroup `json:"feeders"`
	Totals  Totals        `json:"totals"`
}

// Aggregate groups stations by feeder, applies the feeder overrides and rolls
// consumer counts up per feeder and globally. It does not modify its inputs.
func Aggregate(stations []Station, overrides FeederOverrides) Aggregation {
	index := make(map[string]int)
	groups := make([]FeederGroup, 0)

	var totals Totals
	for _, s := range stations {
		i, ok := index[s.Feeder]
		if !ok {
			i = len(groups)
			index[s.Feeder] = i
			groups = append(groups, FeederGroup{Name: s.Feeder, Off: overrides.Off(s.Feeder)})
		}

		out := EffectiveOut(s, overrides)
		g := &groups[i]
		g.Stations = append(g.Stations, StationStatus{Station: s, EffOut: out})
		g.Total += s.Consumers
		totals.Total += s.Consumers
		totals.SubsTotal++
		if out {
			g.Affected += s.Consumers
			totals.Affected += s.Consumers
			totals.SubsOff++
		}
	}

	for i := range groups {
		groups[i].Healthy = groups[i].Total - groups[i].Affected
		groups[i].Pct = RoundPct(groups[i].Affected, groups[i].Total)
	}

	coll := feederCollator()
	slices.SortStableFunc(groups, func(a, b FeederGroup) int {
		return compareText(coll, a.Name, b.Name)
	})

	totals.Healthy = totals.Total - totals.Affected
	totals.Pct = RoundPct(totals.Affected, totals.Total)
	totals.SubsOn = totals.SubsTotal - totals.SubsOff
	totals.OffPct = RoundPct(totals.SubsOff, totals.SubsTotal)

	return Aggregation{Feeders: groups, Totals: totals}
}

// RoundPct returns part/whole as a percentage rounded to one decimal place,
// half away from zero. A zero whole yields 0.
func RoundPct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
