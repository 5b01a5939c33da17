package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/pagination"
)

// Outer joins keep vulnerabilities without a linked product in the list.
const listFrom = `
	FROM cve c
	LEFT JOIN cve_product cp ON cp.cve_id = c.cve_id
	LEFT JOIN product p ON p.product_id = cp.product_id
	LEFT JOIN vendor v ON v.vendor_id = p.vendor_id`

// Statistics are scoped to a named vendor or product, so only linked rows count.
const scopedFrom = `
	FROM cve c
	JOIN cve_product cp ON cp.cve_id = c.cve_id
	JOIN product p ON p.product_id = cp.product_id
	JOIN vendor v ON v.vendor_id = p.vendor_id`

const listColumns = `
	SELECT
		c.cve_id,
		COALESCE(c.description, ''),
		UPPER(COALESCE(c.severity, '')),
		COALESCE(NULLIF(c.cwe_id, ''), 'UNKNOWN'),
		c.published_date,
		COALESCE(v.vendor_name, ''),
		COALESCE(p.product_name, '')`

// severityRank orders CRITICAL highest and anything unrecognized lowest.
const severityRank = `CASE UPPER(c.severity)
		WHEN 'CRITICAL' THEN 5
		WHEN 'HIGH' THEN 4
		WHEN 'MEDIUM' THEN 3
		WHEN 'LOW' THEN 2
		ELSE 1 END`

// sortColumns is the only source of sort text spliced into queries.
var sortColumns = map[vulnerability.SortField]string{
	vulnerability.SortByID:       "c.cve_id",
	vulnerability.SortBySeverity: severityRank,
	vulnerability.SortByDate:     "c.published_date",
}

// queryBuilder renders the dashboard queries for one dialect.
type queryBuilder struct {
	dialect Dialect
}

func newQueryBuilder(d Dialect) queryBuilder {
	return queryBuilder{dialect: d}
}

// filterPredicates builds the severity and search predicates of the list view.
func filterPredicates(f vulnerability.Filter) *predicates {
	p := &predicates{}
	if f.HasSeverity() {
		p.add("UPPER(c.severity) = ?", f.Severity)
	}
	if f.HasSearch() {
		pattern := wrapLikePattern(strings.ToLower(f.Search))
		p.add(`(LOWER(v.vendor_name) LIKE ? ESCAPE '\' OR LOWER(p.product_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return p
}

// scopePredicates builds the exact-match predicate for a statistics scope.
func scopePredicates(scope vulnerability.Scope) *predicates {
	p := &predicates{}
	if scope.IsVendor() {
		p.add("v.vendor_name = ?", scope.Name)
	} else {
		p.add("p.product_name = ?", scope.Name)
	}
	return p
}

// orderBy renders the ORDER BY clause from allow-listed text only. Ties are
// broken by identifier and then by vendor and product name.
func orderBy(s vulnerability.Sort) string {
	column, ok := sortColumns[s.Field]
	if !ok {
		column = sortColumns[vulnerability.DefaultSortField]
	}
	direction := "DESC"
	if s.Order == pagination.SortAsc {
		direction = "ASC"
	}

	clause := fmt.Sprintf(" ORDER BY %s %s", column, direction)
	if s.Field != vulnerability.SortByID {
		clause += fmt.Sprintf(", c.cve_id %s", direction)
	}
	return clause + ", v.vendor_name ASC, p.product_name ASC"
}

// list selects one probe-sized page of joined rows.
func (b queryBuilder) list(f vulnerability.Filter, s vulnerability.Sort, page pagination.Pagination) (string, []any) {
	where, args := filterPredicates(f).where()
	query := listColumns + listFrom + where + orderBy(s) + " LIMIT ? OFFSET ?"
	args = append(args, page.ProbeLimit(), page.Offset())
	return b.dialect.Rebind(query), args
}

// recentCounts counts distinct vulnerabilities per severity published on or
// after since, over the same joined rows as the list.
func (b queryBuilder) recentCounts(f vulnerability.Filter, since time.Time) (string, []any) {
	p := filterPredicates(f)
	p.add("c.published_date >= ?", since.Format(vulnerability.DateLayout))
	where, args := p.where()

	query := `SELECT UPPER(c.severity), COUNT(DISTINCT c.cve_id)` +
		listFrom + where +
		` GROUP BY UPPER(c.severity)`
	return b.dialect.Rebind(query), args
}

func (b queryBuilder) severityDistribution(scope vulnerability.Scope) (string, []any) {
	where, args := scopePredicates(scope).where()
	query := `SELECT UPPER(c.severity), COUNT(DISTINCT c.cve_id)` +
		scopedFrom + where +
		` GROUP BY UPPER(c.severity)`
	return b.dialect.Rebind(query), args
}

func (b queryBuilder) monthlyCounts(scope vulnerability.Scope, since time.Time) (string, []any) {
	p := scopePredicates(scope)
	p.add("c.published_date >= ?", since.Format(vulnerability.DateLayout))
	where, args := p.where()

	month := b.dialect.MonthKey("c.published_date")
	query := `SELECT ` + month + `, COUNT(DISTINCT c.cve_id)` +
		scopedFrom + where +
		` GROUP BY ` + month
	return b.dialect.Rebind(query), args
}

// topCWEs excludes rows without a known weakness category.
func (b queryBuilder) topCWEs(scope vulnerability.Scope, limit int) (string, []any) {
	p := scopePredicates(scope)
	p.add("c.cwe_id IS NOT NULL AND c.cwe_id <> '' AND UPPER(c.cwe_id) <> ?", vulnerability.UnknownCWE)
	where, args := p.where()

	query := `SELECT c.cwe_id, COUNT(DISTINCT c.cve_id) AS cnt` +
		scopedFrom + where +
		` GROUP BY c.cwe_id ORDER BY cnt DESC, c.cwe_id ASC LIMIT ?`
	args = append(args, limit)
	return b.dialect.Rebind(query), args
}

func (b queryBuilder) topProducts(vendor string, limit int) (string, []any) {
	p := &predicates{}
	p.add("v.vendor_name = ?", vendor)
	where, args := p.where()

	query := `SELECT p.product_name, COUNT(DISTINCT c.cve_id) AS cnt` +
		scopedFrom + where +
		` GROUP BY p.product_name ORDER BY cnt DESC, p.product_name ASC LIMIT ?`
	args = append(args, limit)
	return b.dialect.Rebind(query), args
}
