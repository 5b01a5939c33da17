// Package pagination provides pagination utilities.
package pagination

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultPerPage is used when no page size is configured.
	DefaultPerPage = 12
	// MaxPerPage caps the page size.
	MaxPerPage = 100
	// MaxPage caps the page number so the offset fits a 32-bit OFFSET.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ParseSortOrder parses "asc" or "desc" in any case. Anything else
// returns fallback.
func ParseSortOrder(s string, fallback SortOrder) SortOrder {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SortAsc):
		return SortAsc
	case string(SortDesc):
		return SortDesc
	default:
		return fallback
	}
}

// Lower returns the direction as used in query strings ("asc"/"desc").
func (o SortOrder) Lower() string {
	return strings.ToLower(string(o))
}

// Toggle returns the opposite direction.
func (o SortOrder) Toggle() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// ParsePage parses a 1-based page number. Missing or non-numeric input
// yields 1, values below 1 are clamped to 1 and values above MaxPage
// (including out-of-range integers) are clamped to MaxPage.
func ParsePage(s string) int {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) && page > 0 {
		return MaxPage
	}
	if err != nil || page < 1 {
		return 1
	}
	return min(page, MaxPage)
}

// New creates a new Pagination with defaults applied.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Pagination{
		Page:    page,
		PerPage: perPage,
	}
}

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	return p.PerPage
}

// ProbeLimit returns the page size plus one. The extra row tells whether
// a next page exists without a COUNT query.
func (p Pagination) ProbeLimit() int {
	return p.PerPage + 1
}

// Window is one page of rows cut from a probe-sized result.
type Window[T any] struct {
	Items   []T
	Page    int
	PerPage int
	HasPrev bool
	HasNext bool
}

// NewWindow trims rows fetched with ProbeLimit down to the page size and
// derives the navigation flags.
func NewWindow[T any](rows []T, p Pagination) Window[T] {
	hasNext := len(rows) > p.PerPage
	if hasNext {
		rows = rows[:p.PerPage]
	}
	if rows == nil {
		rows = make([]T, 0)
	}
	return Window[T]{
		Items:   rows,
		Page:    p.Page,
		PerPage: p.PerPage,
		HasPrev: p.Page > 1,
		HasNext: hasNext,
	}
}

// PrevPage returns the previous page number, or 0 on the first page.
func (w Window[T]) PrevPage() int {
	if !w.HasPrev {
		return 0
	}
	return w.Page - 1
}

// NextPage returns the next page number, or 0 on the last page.
func (w Window[T]) NextPage() int {
	if !w.HasNext {
		return 0
	}
	return w.Page + 1
}
