// Package listutil pages, searches and sorts the collections the API returns
// whole, so list pages stay usable on large herds.
package listutil

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 20

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 20, 50, 100}

// Params are the list controls read from the query string.
type Params struct {
	Page    int    // 1-indexed
	PerPage int    // one of PerPageOptions
	Sort    string // allowed column or ""
	Desc    bool
	Search  string // free-text "q"
}

// Parse reads page, per_page, sort, dir and q.
// PRE: none
// POST: Page >= 1; PerPage is allowed; Sort is "" or in allowedSort
func Parse(q url.Values, allowedSort []string) Params {
	p := Params{Search: strings.TrimSpace(q.Get("q"))}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, p.PerPage) {
		p.PerPage = DefaultPerPage
	}
	if s := q.Get("sort"); slices.Contains(allowedSort, s) {
		p.Sort = s
	}
	p.Desc = q.Get("dir") == "desc"
	return p
}

// Query renders p back into query values, omitting defaults.
func (p Params) Query() url.Values {
	q := url.Values{}
	if p.Page > 1 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage != DefaultPerPage {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
		if p.Desc {
			q.Set("dir", "desc")
		}
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	return q
}

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPageInfo computes pagination metadata, clamping Page into range.
// PRE: total >= 0
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), totalPages)
	return PageInfo{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// StartRow returns the 1-indexed first row number on the page, 0 when empty.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

// EndRow returns the 1-indexed last row number on the page.
func (p PageInfo) EndRow() int {
	return min(p.Page*p.PerPage, p.Total)
}

// PageNumbers returns at most 5 page numbers centered on the current page.
func (p PageInfo) PageNumbers() []int {
	const maxButtons = 5
	start := max(p.Page-maxButtons/2, 1)
	end := start + maxButtons - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = max(end-maxButtons+1, 1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// ShowPagination reports whether more than one page exists.
func (p PageInfo) ShowPagination() bool {
	return p.Total > p.PerPage
}

// Column maps a sort key to the field it compares.
type Column[T any] func(T) string

// Apply searches, sorts and pages items. search reports whether an item
// matches the term; cols supplies the sortable columns. Numeric strings sort
// numerically.
// PRE: none
// POST: items is not mutated
func Apply[T any](items []T, p Params, search func(T, string) bool, cols map[string]Column[T]) ([]T, PageInfo) {
	out := make([]T, 0, len(items))
	term := strings.ToLower(p.Search)
	for _, it := range items {
		if term == "" || search == nil || search(it, term) {
			out = append(out, it)
		}
	}

	if col, ok := cols[p.Sort]; ok {
		slices.SortStableFunc(out, func(a, b T) int {
			c := compareValues(col(a), col(b))
			if p.Desc {
				return -c
			}
			return c
		})
	}

	info := NewPageInfo(p.Page, p.PerPage, len(out))
	from := min((info.Page-1)*info.PerPage, len(out))
	to := min(from+info.PerPage, len(out))
	return out[from:to], info
}

// Contains reports whether any field contains term. term must already be lower case.
func Contains(term string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func compareValues(a, b string) int {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(x, y)
	}
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}
