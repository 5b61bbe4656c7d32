// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a platform console list.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 200

// Page is a parsed offset window. Start is 1-based as shown to humans.
type Page struct {
	Start int
	Size  int
}

// Parse reads "start" (1-based) and "limit" from the query string.
// Missing or invalid values fall back to 1 and PageSize.
func Parse(r *http.Request) Page {
	return Page{
		Start: positive(query.Get(r, "start"), 1),
		Size:  min(positive(query.Get(r, "limit"), PageSize), MaxPageSize),
	}
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Offset is the number of rows to skip.
func (p Page) Offset() int64 { return int64(p.Start - 1) }

// LimitPlusOne returns Size+1 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func (p Page) LimitPlusOne() int64 { return int64(p.Size + 1) }

// Trim cuts a look-ahead fetch down to the page size and reports whether a
// next page exists.
func Trim[T any](rows []T, p Page) ([]T, bool) {
	if len(rows) > p.Size {
		return rows[:p.Size], true
	}
	return rows, false
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int  `json:"start"` // 1-based start index (0 if no results)
	End       int  `json:"end"`   // 1-based end index (0 if no results)
	PrevStart int  `json:"prev_start"`
	NextStart int  `json:"next_start,omitempty"`
	HasNext   bool `json:"has_next"`
}

// ComputeRange calculates display range values for a page that showed
// shown rows.
func ComputeRange(p Page, shown int, hasNext bool) Range {
	prev := max(p.Start-p.Size, 1)
	if shown == 0 {
		return Range{PrevStart: prev}
	}
	rg := Range{
		Start:     p.Start,
		End:       p.Start + shown - 1,
		PrevStart: prev,
		HasNext:   hasNext,
	}
	if hasNext {
		rg.NextStart = p.Start + shown
	}
	return rg
}
