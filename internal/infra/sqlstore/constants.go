package sqlstore

import "strings"

// Query names used as metric labels.
const (
	queryList                 = "list"
	queryRecentCounts         = "recent_counts"
	querySeverityDistribution = "severity_distribution"
	queryMonthlyCounts        = "monthly_counts"
	queryTopCWEs              = "top_cwes"
	queryTopProducts          = "top_products"
)

// escapeLikePattern escapes special characters in LIKE patterns.
// \ is the escape character, so it is escaped first.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// wrapLikePattern wraps a search term with % wildcards after escaping.
// Use this for substring search: wrapLikePattern("foo") returns "%foo%"
func wrapLikePattern(s string) string {
	return "%" + escapeLikePattern(s) + "%"
}
