package domain

import (
	"slices"
	"strings"
)

// PageSizeAll disables paging: every filtered row lands on page 1.
const PageSizeAll = 0

// DefaultPageSize is used when a caller does not choose a page size.
const DefaultPageSize = 50

// PageSizePresets are the page sizes offered to callers, ascending.
var PageSizePresets = []int{25, 50, 100, 200}

// Query selects and pages the flattened station rows.
type Query struct {
	Needle       string // case-insensitive substring of station or feeder name
	AffectedOnly bool
	Feeder       string // exact feeder name; "" or AllFeeders for every feeder
	Page         int    // 1-indexed
	PageSize     int    // PageSizeAll or a preset
}

// Page is one window over the filtered, sorted rows.
type Page struct {
	Rows      []StationStatus `json:"rows"`
	Page      int             `json:"page"`
	PageSize  int             `json:"pageSize"`
	PageCount int             `json:"pageCount"`
	TotalRows int             `json:"totalRows"`
	From      int             `json:"from"` // 1-based first row shown, 0 when empty
	To        int             `json:"to"`   // 1-based last row shown, 0 when empty
}

// View filters, sorts and pages the aggregation's station rows.
func View(agg Aggregation, q Query) Page {
	rows := Filter(Flatten(agg), q)
	SortRows(rows)
	return Paginate(rows, q.Page, q.PageSize)
}

// Flatten lists every station of every feeder group in feeder order.
func Flatten(agg Aggregation) []StationStatus {
	n := 0
	for _, g := range agg.Feeders {
		n += len(g.Stations)
	}
	out := make([]StationStatus, 0, n)
	for _, g := range agg.Feeders {
		out = append(out, g.Stations...)
	}
	return out
}

// Filter applies the feeder scope first, then the text and affected filters.
func Filter(rows []StationStatus, q Query) []StationStatus {
	needle := strings.ToLower(strings.TrimSpace(q.Needle))
	scoped := q.Feeder != "" && q.Feeder != AllFeeders

	out := make([]StationStatus, 0, len(rows))
	for _, r := range rows {
		if scoped && r.Feeder != q.Feeder {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Feeder), needle) {
			continue
		}
		if q.AffectedOnly && !r.EffOut {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortRows orders rows by station name ignoring case, then by feeder name.
// Names equal under the collator fall back to byte order and finally to
// their input order.
func SortRows(rows []StationStatus) {
	coll := stationCollator()
	slices.SortStableFunc(rows, func(a, b StationStatus) int {
		if r := coll.CompareString(a.Name, b.Name); r != 0 {
			return r
		}
		if r := coll.CompareString(a.Feeder, b.Feeder); r != 0 {
			return r
		}
		if r := strings.Compare(a.Name, b.Name); r != 0 {
			return r
		}
		return strings.Compare(a.Feeder, b.Feeder)
	})
}

// ClampPageSize snaps a requested size to the smallest preset that holds it.
// Sizes above the largest preset snap to it and sizes <= 0 mean all rows.
func ClampPageSize(n int) int {
	if n <= 0 {
		return PageSizeAll
	}
	for _, p := range PageSizePresets {
		if n <= p {
			return p
		}
	}
	return PageSizePresets[len(PageSizePresets)-1]
}

// Paginate cuts one page out of rows. A page outside 1..PageCount resets to
// page 1; it is never clamped to the last page.
func Paginate(rows []StationStatus, page, pageSize int) Page {
	size := ClampPageSize(pageSize)
	total := len(rows)

	pageCount := 1
	if size != PageSizeAll && total > 0 {
		pageCount = (total + size - 1) / size
	}
	if page < 1 || page > pageCount {
		page = 1
	}

	start, end := 0, total
	if size != PageSizeAll {
		start = (page - 1) * size
		end = min(start+size, total)
	}

	p := Page{
		Rows:      rows[start:end],
		Page:      page,
		PageSize:  size,
		PageCount: pageCount,
		TotalRows: total,
	}
	if end > start {
		p.From = start + 1
		p.To = end
	}
	return p
}
