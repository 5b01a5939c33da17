package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openctemio/cvedash/internal/metrics"
	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/pagination"
)

// VulnerabilityRepository implements vulnerability.Repository over database/sql.
type VulnerabilityRepository struct {
	db      *DB
	queries queryBuilder
}

// NewVulnerabilityRepository creates a new VulnerabilityRepository.
func NewVulnerabilityRepository(db *DB) *VulnerabilityRepository {
	return &VulnerabilityRepository{
		db:      db,
		queries: newQueryBuilder(db.Dialect()),
	}
}

// Ensure VulnerabilityRepository implements vulnerability.Repository
var _ vulnerability.Repository = (*VulnerabilityRepository)(nil)

// Session pins one pooled connection for the duration of fn and returns it
// to the pool on every path, including panics inside fn.
func (r *VulnerabilityRepository) Session(ctx context.Context, fn func(vulnerability.Reader) error) (err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	metrics.StoreSessionsInUse.Inc()

	defer func() {
		metrics.StoreSessionsInUse.Dec()
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to release connection: %w", closeErr)
		}
	}()

	return fn(&reader{conn: conn, queries: r.queries})
}

// querier is the subset of *sql.Conn the reader needs.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// reader runs queries over a single connection.
type reader struct {
	conn    querier
	queries queryBuilder
}

var _ vulnerability.Reader = (*reader)(nil)

// List returns the joined rows of one page plus the probe row.
func (r *reader) List(
	ctx context.Context,
	filter vulnerability.Filter,
	sort vulnerability.Sort,
	page pagination.Pagination,
) (_ []*vulnerability.Vulnerability, err error) {
	defer observe(queryList, time.Now(), &err)

	query, args := r.queries.list(filter, sort, page)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vulnerabilities: %w", err)
	}
	defer rows.Close()

	vulns := make([]*vulnerability.Vulnerability, 0, page.ProbeLimit())
	for rows.Next() {
		v, err := scanVulnerability(rows)
		if err != nil {
			return nil, err
		}
		vulns = append(vulns, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vulnerabilities: %w", err)
	}

	return vulns, nil
}

// CountBySeverity returns grouped counts keyed by uppercased severity.
func (r *reader) CountBySeverity(
	ctx context.Context,
	filter vulnerability.Filter,
	since time.Time,
) (_ map[vulnerability.Severity]int, err error) {
	defer observe(queryRecentCounts, time.Now(), &err)

	query, args := r.queries.recentCounts(filter, since)
	buckets, err := r.severityBuckets(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent vulnerabilities: %w", err)
	}

	counts := make(map[vulnerability.Severity]int, len(buckets))
	for _, b := range buckets {
		counts[b.Severity] += b.Count
	}
	return counts, nil
}

// SeverityDistribution returns the scope's counts per severity, highest
// severity first.
func (r *reader) SeverityDistribution(
	ctx context.Context,
	scope vulnerability.Scope,
) (_ []vulnerability.SeverityCount, err error) {
	defer observe(querySeverityDistribution, time.Now(), &err)

	query, args := r.queries.severityDistribution(scope)
	buckets, err := r.severityBuckets(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query severity distribution: %w", err)
	}

	slices.SortFunc(buckets, func(a, b vulnerability.SeverityCount) int {
		if a.Severity.Rank() != b.Severity.Rank() {
			return b.Severity.Rank() - a.Severity.Rank()
		}
		return strings.Compare(a.Severity.String(), b.Severity.String())
	})
	return buckets, nil
}

// MonthlyCounts returns the scope's counts keyed by YYYY-MM.
func (r *reader) MonthlyCounts(
	ctx context.Context,
	scope vulnerability.Scope,
	since time.Time,
) (_ map[string]int, err error) {
	defer observe(queryMonthlyCounts, time.Now(), &err)

	query, args := r.queries.monthlyCounts(scope, since)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var month sql.NullString
		var count int
		if err := rows.Scan(&month, &count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly count: %w", err)
		}
		if month.Valid {
			counts[month.String] += count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly counts: %w", err)
	}

	return counts, nil
}

// TopCWEs returns the scope's most frequent known weakness categories.
func (r *reader) TopCWEs(
	ctx context.Context,
	scope vulnerability.Scope,
	limit int,
) (_ []vulnerability.CWECount, err error) {
	defer observe(queryTopCWEs, time.Now(), &err)

	query, args := r.queries.topCWEs(scope, limit)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top weaknesses: %w", err)
	}
	defer rows.Close()

	result := make([]vulnerability.CWECount, 0, limit)
	for rows.Next() {
		var c vulnerability.CWECount
		if err := rows.Scan(&c.CWEID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan weakness count: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weakness counts: %w", err)
	}

	return result, nil
}

// TopProducts returns the vendor's products with the most vulnerabilities.
func (r *reader) TopProducts(
	ctx context.Context,
	vendor string,
	limit int,
) (_ []vulnerability.ProductCount, err error) {
	defer observe(queryTopProducts, time.Now(), &err)

	query, args := r.queries.topProducts(vendor, limit)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	result := make([]vulnerability.ProductCount, 0, limit)
	for rows.Next() {
		var p vulnerability.ProductCount
		if err := rows.Scan(&p.ProductName, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan product count: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product counts: %w", err)
	}

	return result, nil
}

// severityBuckets runs a (severity, count) grouping query. NULL severities
// are skipped.
func (r *reader) severityBuckets(ctx context.Context, query string, args []any) ([]vulnerability.SeverityCount, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]vulnerability.SeverityCount, 0, len(vulnerability.AllSeverities()))
	for rows.Next() {
		var severity sql.NullString
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		if !severity.Valid {
			continue
		}
		buckets = append(buckets, vulnerability.SeverityCount{
			Severity: vulnerability.ParseSeverity(severity.String),
			Count:    count,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buckets, nil
}

func scanVulnerability(rows *sql.Rows) (*vulnerability.Vulnerability, error) {
	var (
		v         vulnerability.Vulnerability
		severity  string
		published dateValue
	)

	err := rows.Scan(
		&v.ID,
		&v.Description,
		&severity,
		&v.CWEID,
		&published,
		&v.VendorName,
		&v.ProductName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan vulnerability: %w", err)
	}

	v.Severity = vulnerability.ParseSeverity(severity)
	v.CWEID = vulnerability.NormalizeCWE(v.CWEID)
	v.PublishedDate = published.Time
	return &v, nil
}

func observe(query string, start time.Time, err *error) {
	metrics.ObserveQuery(query, start, *err)
}

// dateValue scans a calendar date from drivers that return either
// time.Time or text. NULL scans as the zero time.
type dateValue struct {
	time.Time
}

// Scan implements sql.Scanner.
func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date value of type %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) > len(vulnerability.DateLayout) {
		s = s[:len(vulnerability.DateLayout)]
	}
	t, err := time.Parse(vulnerability.DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}
