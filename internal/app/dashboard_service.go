package app

import (
	"context"
	"fmt"
	"time"

	"github.com/openctemio/cvedash/internal/metrics"
	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/logger"
	"github.com/openctemio/cvedash/pkg/pagination"
)

// Dashboard defaults.
const (
	DefaultRecentDays = 3
	TrendMonths       = 12
	TopCWELimit       = 10
	TopProductLimit   = 10
)

// Statistic names, used in logs and as metric labels.
const (
	StatSeverityDistribution = "severity_distribution"
	StatMonthlyTrend         = "monthly_trend"
	StatTopCWEs              = "cwe_top10"
	StatTopProducts          = "vendor_product_top10"
)

// ListQuery holds the raw list parameters as received.
type ListQuery struct {
	Severity  string
	Search    string
	SortBy    string
	SortOrder string
	Page      string
}

// ListParams holds normalized list parameters.
type ListParams struct {
	Filter vulnerability.Filter
	Sort   vulnerability.Sort
	Page   pagination.Pagination
}

// ListResult is one shaped page of the vulnerability list.
type ListResult struct {
	Params       ListParams
	Window       pagination.Window[*vulnerability.Vulnerability]
	Counts       vulnerability.Counts
	TotalCount   int
	RecentDays   int
	RecentCutoff time.Time
	GeneratedAt  time.Time
}

// EntityStats holds the aggregate views for one vendor or product.
// Each list is empty, never nil, when its query fails.
type EntityStats struct {
	Scope                vulnerability.Scope
	SeverityDistribution []vulnerability.SeverityCount
	MonthlyTrend         []vulnerability.MonthCount
	TrendTitle           string
	TopCWEs              []vulnerability.CWECount
	// TopProducts is only set for vendor scope.
	TopProducts []vulnerability.ProductCount
}

// DashboardService provides the vulnerability list and statistics views.
type DashboardService struct {
	repo       vulnerability.Repository
	logger     *logger.Logger
	pageSize   int
	recentDays int
	now        func() time.Time
}

// DashboardServiceOption is a functional option for DashboardService.
type DashboardServiceOption func(*DashboardService)

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) DashboardServiceOption {
	return func(s *DashboardService) {
		s.pageSize = n
	}
}

// WithRecentDays sets the trailing window used for recent counts and flags.
func WithRecentDays(days int) DashboardServiceOption {
	return func(s *DashboardService) {
		s.recentDays = days
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DashboardServiceOption {
	return func(s *DashboardService) {
		s.now = now
	}
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo vulnerability.Repository, log *logger.Logger, opts ...DashboardServiceOption) *DashboardService {
	s := &DashboardService{
		repo:       repo,
		logger:     log,
		pageSize:   pagination.DefaultPerPage,
		recentDays: DefaultRecentDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeListQuery turns raw parameters into safe values. Nothing is
// rejected; bad input falls back to defaults.
func (s *DashboardService) NormalizeListQuery(q ListQuery) ListParams {
	return ListParams{
		Filter: vulnerability.NewFilter(q.Severity, q.Search),
		Sort:   vulnerability.NewSort(q.SortBy, q.SortOrder),
		Page:   pagination.New(pagination.ParsePage(q.Page), s.pageSize),
	}
}

// ListVulnerabilities returns one page of vulnerabilities together with the
// recent per-severity counts. Both queries share one connection but no
// transaction.
func (s *DashboardService) ListVulnerabilities(ctx context.Context, q ListQuery) (*ListResult, error) {
	params := s.NormalizeListQuery(q)
	now := s.now()
	cutoff := vulnerability.RecentCutoff(now, s.recentDays)

	var (
		rows []*vulnerability.Vulnerability
		raw  map[vulnerability.Severity]int
	)
	err := s.repo.Session(ctx, func(r vulnerability.Reader) error {
		var err error
		rows, err = r.List(ctx, params.Filter, params.Sort, params.Page)
		if err != nil {
			return err
		}
		// Counts ignore the selected severity so every tab shows its own total.
		raw, err = r.CountBySeverity(ctx, params.Filter.WithoutSeverity(), cutoff)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vulnerabilities: %w", err)
	}

	window := pagination.NewWindow(rows, params.Page)
	for _, v := range window.Items {
		v.MarkRecent(cutoff)
	}

	counts := vulnerability.NewCounts(raw)
	return &ListResult{
		Params:       params,
		Window:       window,
		Counts:       counts,
		TotalCount:   counts.Total(),
		RecentDays:   s.recentDays,
		RecentCutoff: cutoff,
		GeneratedAt:  now,
	}, nil
}

// GetEntityStats returns the statistics for one scope. It never fails: each
// statistic that cannot be loaded is logged and left empty.
func (s *DashboardService) GetEntityStats(ctx context.Context, scope vulnerability.Scope) *EntityStats {
	log := s.logger.WithContext(ctx).With("scope", string(scope.Kind), "name", scope.Name)
	months := vulnerability.MonthSeries(s.now(), TrendMonths)

	stats := &EntityStats{
		Scope:                scope,
		SeverityDistribution: []vulnerability.SeverityCount{},
		MonthlyTrend:         []vulnerability.MonthCount{},
		TrendTitle:           TrendTitle(scope),
		TopCWEs:              []vulnerability.CWECount{},
	}
	if scope.IsVendor() {
		stats.TopProducts = []vulnerability.ProductCount{}
	}

	err := s.repo.Session(ctx, func(r vulnerability.Reader) error {
		stats.SeverityDistribution = collect(log, StatSeverityDistribution, func() ([]vulnerability.SeverityCount, error) {
			return r.SeverityDistribution(ctx, scope)
		})

		stats.MonthlyTrend = collect(log, StatMonthlyTrend, func() ([]vulnerability.MonthCount, error) {
			counts, err := r.MonthlyCounts(ctx, scope, months[len(months)-1])
			if err != nil {
				return nil, err
			}
			return vulnerability.FillTrend(months, counts), nil
		})

		stats.TopCWEs = collect(log, StatTopCWEs, func() ([]vulnerability.CWECount, error) {
			return r.TopCWEs(ctx, scope, TopCWELimit)
		})

		if scope.IsVendor() {
			stats.TopProducts = collect(log, StatTopProducts, func() ([]vulnerability.ProductCount, error) {
				return r.TopProducts(ctx, scope.Name, TopProductLimit)
			})
		}
		return nil
	})
	if err != nil {
		log.Error("failed to open statistics session", "error", err)
		metrics.RecordStatisticFailure("session")
	}

	return stats
}

// TrendTitle returns the chart title for a scope's monthly trend.
func TrendTitle(scope vulnerability.Scope) string {
	return fmt.Sprintf("Vulnerabilities per month for %s %q (last %d months)", scope.Kind, scope.Name, TrendMonths)
}

// collect runs one statistic query. A failure is logged, counted and
// replaced with an empty list so the other statistics still render.
func collect[T any](log *logger.Logger, name string, fn func() ([]T, error)) []T {
	out, err := fn()
	if err != nil {
		log.Error("failed to get statistic", "statistic", name, "error", err)
		metrics.RecordStatisticFailure(name)
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}
