package domain

// Engine is the aggregation capability shared by every dashboard variant.
// Implementations must be pure: equal inputs give equal outputs.
type Engine interface {
	Aggregate(stations []Station, overrides FeederOverrides) Aggregation
	View(agg Aggregation, q Query) Page
}

// DefaultEngine is the package-level implementation backed by Aggregate and View.
var DefaultEngine Engine = pureEngine{}

type pureEngine struct{}

func (pureEngine) Aggregate(stations []Station, overrides FeederOverrides) Aggregation {
	return Aggregate(stations, overrides)
}

func (pureEngine) View(agg Aggregation, q Query) Page {
	return View(agg, q)
}
