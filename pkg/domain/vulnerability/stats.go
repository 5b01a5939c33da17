package vulnerability

import "time"

// Counts holds a per-severity count for exactly the five labels.
type Counts map[Severity]int

// NewCounts builds Counts from raw grouped results. Labels outside the
// five are dropped and missing labels default to zero.
func NewCounts(raw map[Severity]int) Counts {
	c := make(Counts, len(AllSeverities()))
	for _, s := range AllSeverities() {
		c[s] = raw[s]
	}
	return c
}

// Total returns the sum over the five labels.
func (c Counts) Total() int {
	total := 0
	for _, s := range AllSeverities() {
		total += c[s]
	}
	return total
}

// Ordered returns the counts in display order.
func (c Counts) Ordered() []SeverityCount {
	out := make([]SeverityCount, 0, len(AllSeverities()))
	for _, s := range AllSeverities() {
		out = append(out, SeverityCount{Severity: s, Count: c[s]})
	}
	return out
}

// SeverityCount is one bucket of a severity distribution.
type SeverityCount struct {
	Severity Severity
	Count    int
}

// MonthCount is one point of the monthly registration trend.
type MonthCount struct {
	Month string // YYYY-MM
	Count int
}

// CWECount is one entry of the top weakness categories.
type CWECount struct {
	CWEID string
	Count int
}

// ProductCount is one entry of a vendor's most affected products.
type ProductCount struct {
	ProductName string
	Count       int
}

// MonthLayout is the key format of trend months.
const MonthLayout = "2006-01"

// MonthSeries returns the first day of the current month and of the n-1
// months before it, most recent first.
func MonthSeries(now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	months := make([]time.Time, n)
	for i := range months {
		months[i] = first.AddDate(0, -i, 0)
	}
	return months
}

// FillTrend zero-fills grouped month counts over a month series.
func FillTrend(months []time.Time, counts map[string]int) []MonthCount {
	out := make([]MonthCount, 0, len(months))
	for _, m := range months {
		key := m.Format(MonthLayout)
		out = append(out, MonthCount{Month: key, Count: counts[key]})
	}
	return out
}
