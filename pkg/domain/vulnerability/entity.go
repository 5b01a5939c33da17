// Package vulnerability holds the read model of CVE records linked to
// vendors and products, plus the filters and aggregates the dashboard uses.
package vulnerability

import "time"

// DateLayout is the calendar-date format used for published dates.
const DateLayout = "2006-01-02"

// Vulnerability is one row of the dashboard list: a CVE together with one of
// its linked products (both empty when it has none).
type Vulnerability struct {
	ID            string
	Description   string
	Severity      Severity
	CWEID         string
	PublishedDate time.Time
	VendorName    string
	ProductName   string

	// IsRecent is set by the page-view flow, not loaded from the store.
	IsRecent bool
}

// PublishedOn returns the published date as YYYY-MM-DD, or "" if unknown.
func (v *Vulnerability) PublishedOn() string {
	if v.PublishedDate.IsZero() {
		return ""
	}
	return v.PublishedDate.Format(DateLayout)
}

// MarkRecent flags the vulnerability when it was published on or after cutoff.
// Both dates are compared at day granularity.
func (v *Vulnerability) MarkRecent(cutoff time.Time) {
	if v.PublishedDate.IsZero() {
		v.IsRecent = false
		return
	}
	v.IsRecent = v.PublishedOn() >= cutoff.Format(DateLayout)
}

// RecentCutoff returns the first calendar day of the trailing window of
// the given length, relative to now.
func RecentCutoff(now time.Time, days int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
}
