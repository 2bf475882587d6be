package domain

// ViewState is the query state a dashboard keeps between requests. Setters
// return a new value; Resolve applies the reset-to-page-1 policy against the
// current aggregation.
type ViewState struct {
	Query Query
}

// NewViewState returns the initial state: every feeder, no filters, page 1 of
// DefaultPageSize rows.
func NewViewState() ViewState {
	return ViewState{Query: Query{Feeder: AllFeeders, Page: 1, PageSize: DefaultPageSize}}
}

func (v ViewState) WithNeedle(needle string) ViewState {
	v.Query.Needle = needle
	return v
}

func (v ViewState) WithAffectedOnly(on bool) ViewState {
	v.Query.AffectedOnly = on
	return v
}

// WithFeeder scopes the view to one feeder; "" selects every feeder.
func (v ViewState) WithFeeder(feeder string) ViewState {
	if feeder == "" {
		feeder = AllFeeders
	}
	v.Query.Feeder = feeder
	return v
}

func (v ViewState) WithPageSize(n int) ViewState {
	v.Query.PageSize = ClampPageSize(n)
	return v
}

func (v ViewState) WithPage(page int) ViewState {
	v.Query.Page = page
	return v
}

// Resolve renders the page for the current state. The returned state carries
// the page actually shown, so a cursor left outside a shrunken result is back
// on page 1.
func (v ViewState) Resolve(engine Engine, agg Aggregation) (ViewState, Page) {
	page := engine.View(agg, v.Query)
	v.Query.Page = page.Page
	v.Query.PageSize = page.PageSize
	return v, page
}
