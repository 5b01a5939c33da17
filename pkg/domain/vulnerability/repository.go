package vulnerability

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/openctemio/cvedash/pkg/pagination"
)

// Reader runs the dashboard queries over a single acquired connection.
type Reader interface {
	// List returns up to page.ProbeLimit() rows matching the filter, ordered by sort.
	List(ctx context.Context, filter Filter, sort Sort, page pagination.Pagination) ([]*Vulnerability, error)

	// CountBySeverity counts distinct vulnerabilities matching the filter that
	// were published on or after since, grouped by uppercased severity.
	CountBySeverity(ctx context.Context, filter Filter, since time.Time) (map[Severity]int, error)

	// SeverityDistribution counts vulnerabilities per severity within the scope.
	SeverityDistribution(ctx context.Context, scope Scope) ([]SeverityCount, error)

	// MonthlyCounts counts vulnerabilities within the scope published on or
	// after since, keyed by YYYY-MM. Months without rows are absent.
	MonthlyCounts(ctx context.Context, scope Scope, since time.Time) (map[string]int, error)

	// TopCWEs returns the most frequent known weakness categories within the scope.
	TopCWEs(ctx context.Context, scope Scope, limit int) ([]CWECount, error)

	// TopProducts returns the vendor's products with the most vulnerabilities.
	TopProducts(ctx context.Context, vendor string, limit int) ([]ProductCount, error)
}

// Repository hands out Readers bound to one database connection.
type Repository interface {
	// Session acquires a connection, runs fn with a Reader over it and
	// releases the connection on every return path.
	Session(ctx context.Context, fn func(Reader) error) error
}

// SeverityFilterAll disables the severity predicate.
const SeverityFilterAll = "ALL"

// Filter defines the filtering options for listing vulnerabilities.
type Filter struct {
	// Severity is SeverityFilterAll or an uppercased label. Unrecognized
	// labels are kept as-is and simply match nothing.
	Severity string
	// Search is matched case-insensitively as a substring of the vendor
	// name or the product name. Empty disables it.
	Search string
}

// NewFilter normalizes raw request values into a Filter.
func NewFilter(severity, search string) Filter {
	sev := strings.ToUpper(strings.TrimSpace(severity))
	if sev == "" {
		sev = SeverityFilterAll
	}
	return Filter{
		Severity: sev,
		Search:   normalizeSearch(search),
	}
}

// searchTransformer folds compatibility forms (fullwidth, ligatures) to their
// canonical equivalents and drops invisible characters.
var searchTransformer = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.Predicate(func(r rune) bool {
		if unicode.IsControl(r) {
			return true
		}
		// Zero-width characters and byte order mark
		if r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF' {
			return true
		}
		// Directional overrides
		return r >= '\u202A' && r <= '\u202E'
	})),
)

func normalizeSearch(s string) string {
	out, _, err := transform.String(searchTransformer, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(out)
}

// HasSeverity reports whether the severity predicate is active.
func (f Filter) HasSeverity() bool {
	return f.Severity != "" && f.Severity != SeverityFilterAll
}

// HasSearch reports whether the search predicate is active.
func (f Filter) HasSearch() bool {
	return f.Search != ""
}

// WithoutSeverity returns a copy of the filter that matches every severity.
func (f Filter) WithoutSeverity() Filter {
	f.Severity = SeverityFilterAll
	return f
}

// Sort is a validated sort specification.
type Sort struct {
	Field SortField
	Order pagination.SortOrder
}

// NewSort normalizes raw request values. Unknown fields fall back to
// DefaultSortField and unknown directions to descending.
func NewSort(field, order string) Sort {
	return Sort{
		Field: ParseSortField(field),
		Order: pagination.ParseSortOrder(order, pagination.SortDesc),
	}
}
