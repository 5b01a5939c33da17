package vulnerability

import (
	"slices"
	"strings"
)

// Severity represents the coarse criticality label of a vulnerability.
// Stored values are case-insensitive; Severity always holds the uppercased form.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// AllSeverities returns the five labels in display order.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityUnknown,
	}
}

// ParseSeverity uppercases and trims a raw stored or user-supplied value.
// The result is not guaranteed to be one of the five labels.
func ParseSeverity(s string) Severity {
	return Severity(strings.ToUpper(strings.TrimSpace(s)))
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the sort weight of the severity (higher = more severe).
// Anything outside the four known levels ranks with UNKNOWN.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	default:
		return 1
	}
}

// UnknownCWE is the weakness category shown when none is recorded.
const UnknownCWE = "UNKNOWN"

// NormalizeCWE maps NULL-ish and empty weakness identifiers to UnknownCWE.
func NormalizeCWE(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownCWE
	}
	return s
}

// SortField is a user-facing sort key. Only the values below are ever
// turned into query text.
type SortField string

const (
	SortByID       SortField = "id"
	SortBySeverity SortField = "severity"
	SortByDate     SortField = "date"
)

// DefaultSortField is used for missing or unrecognized sort keys.
const DefaultSortField = SortByDate

// AllSortFields returns the sort allow-list.
func AllSortFields() []SortField {
	return []SortField{SortByID, SortBySeverity, SortByDate}
}

// IsValid checks if the sort field is on the allow-list.
func (f SortField) IsValid() bool {
	return slices.Contains(AllSortFields(), f)
}

// String returns the string representation.
func (f SortField) String() string {
	return string(f)
}

// ParseSortField returns the matching allow-listed field, or DefaultSortField.
func ParseSortField(s string) SortField {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return DefaultSortField
	}
	return f
}

// ScopeKind identifies which entity a statistics request is scoped to.
type ScopeKind string

const (
	ScopeVendor  ScopeKind = "vendor"
	ScopeProduct ScopeKind = "product"
)

// Scope selects one vendor or one product by exact name.
type Scope struct {
	Kind ScopeKind
	Name string
}

// ResolveScope picks the statistics scope from the raw query values.
// Product takes precedence when both are supplied. ok is false when
// neither is.
func ResolveScope(vendor, product string) (scope Scope, ok bool) {
	if product != "" {
		return Scope{Kind: ScopeProduct, Name: product}, true
	}
	if vendor != "" {
		return Scope{Kind: ScopeVendor, Name: vendor}, true
	}
	return Scope{}, false
}

// IsVendor reports whether the scope selects a vendor.
func (s Scope) IsVendor() bool {
	return s.Kind == ScopeVendor
}
