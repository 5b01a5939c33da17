package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store metrics
var (
	// StoreQueryDuration tracks dashboard query latency by query name
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cvedash_store_query_duration_seconds",
			Help:    "Dashboard store query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query", "outcome"},
	)

	// StoreSessionsInUse tracks connections currently held by request sessions
	StoreSessionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cvedash_store_sessions_in_use",
			Help: "Number of database connections currently held by request sessions",
		},
	)
)

// Dashboard metrics
var (
	// PageViewsTotal counts list page views by render mode
	PageViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvedash_page_views_total",
			Help: "Total number of dashboard list views by render mode",
		},
		[]string{"mode"},
	)

	// StatisticFailuresTotal counts statistics that degraded to an empty result
	StatisticFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvedash_statistic_failures_total",
			Help: "Total number of statistics sub-queries that failed and were replaced with an empty result",
		},
		[]string{"statistic"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts requests by route, render mode and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvedash_http_requests_total",
			Help: "Total number of HTTP requests by route, render mode and status",
		},
		[]string{"route", "mode", "status"},
	)

	// HTTPRequestDuration tracks request latency by route and render mode
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cvedash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "mode"},
	)

	// HTTPResponseSize tracks uncompressed response sizes by route and render mode
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cvedash_http_response_size_bytes",
			Help:    "Uncompressed HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route", "mode"},
	)
)

// routes bounds the route label. Anything else is reported as "other".
var routes = map[string]bool{
	"/":          true,
	"/api/stats": true,
	"/health":    true,
	"/ready":     true,
}

// RouteLabel maps a request path to a bounded route label.
func RouteLabel(path string) string {
	if routes[path] {
		return path
	}
	return "other"
}

// ObserveRequest records one served request. Partial list updates are
// counted apart from full page loads.
func ObserveRequest(path string, partial bool, status, size int, elapsed time.Duration) {
	route := RouteLabel(path)
	mode := renderMode(partial)
	HTTPRequestsTotal.WithLabelValues(route, mode, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, mode).Observe(elapsed.Seconds())
	HTTPResponseSize.WithLabelValues(route, mode).Observe(float64(size))
}

func renderMode(partial bool) string {
	if partial {
		return "partial"
	}
	return "full"
}

// ObserveQuery records the duration of one store query.
func ObserveQuery(query string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreQueryDuration.WithLabelValues(query, outcome).Observe(time.Since(start).Seconds())
}

// RecordPageView increments the page view counter.
func RecordPageView(partial bool) {
	PageViewsTotal.WithLabelValues(renderMode(partial)).Inc()
}

// RecordStatisticFailure increments the statistic failure counter.
func RecordStatisticFailure(statistic string) {
	StatisticFailuresTotal.WithLabelValues(statistic).Inc()
}
