package sqlstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/pagination"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"postgres numbers placeholders", PostgresDialect, "a = ? AND b = ?", "a = $1 AND b = $2"},
		{"postgres skips literals", PostgresDialect, "a LIKE ? ESCAPE '\\' AND b = '?' AND c = ?", "a LIKE $1 ESCAPE '\\' AND b = '?' AND c = $2"},
		{"sqlite keeps question marks", SQLiteDialect, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"no placeholders", PostgresDialect, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.query))
		})
	}
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, PostgresDialect, d)

	d, err = DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, PostgresDialect, d)

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLiteDialect, d)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestDialect_MonthKey(t *testing.T) {
	assert.Equal(t, "to_char(c.published_date, 'YYYY-MM')", PostgresDialect.MonthKey("c.published_date"))
	assert.Equal(t, "strftime('%Y-%m', c.published_date)", SQLiteDialect.MonthKey("c.published_date"))
}

func TestWrapLikePattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"acme", "%acme%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\tmp`, `%c:\\tmp%`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, wrapLikePattern(tt.input))
	}
}

func TestPredicates_Where(t *testing.T) {
	p := &predicates{}
	where, args := p.where()
	assert.Empty(t, where)
	assert.Nil(t, args)

	p.add("a = ?", 1)
	p.add("(b = ? OR c = ?)", "x", "x")
	where, args = p.where()
	assert.Equal(t, " WHERE a = ? AND (b = ? OR c = ?)", where)
	assert.Equal(t, []any{1, "x", "x"}, args)
}

func TestQueryBuilder_List(t *testing.T) {
	b := newQueryBuilder(PostgresDialect)

	t.Run("no filters", func(t *testing.T) {
		query, args := b.list(vulnerability.NewFilter("", ""), vulnerability.NewSort("", ""), pagination.New(1, 12))

		assert.NotContains(t, query, "WHERE")
		assert.Contains(t, query, "LEFT JOIN cve_product cp")
		assert.Contains(t, query, "ORDER BY c.published_date DESC, c.cve_id DESC")
		assert.Contains(t, query, "LIMIT $1 OFFSET $2")
		assert.Equal(t, []any{13, 0}, args)
	})

	t.Run("severity and search are bound", func(t *testing.T) {
		filter := vulnerability.NewFilter("critical", " Ac%me ")
		query, args := b.list(filter, vulnerability.NewSort("id", "asc"), pagination.New(3, 12))

		assert.Contains(t, query, "WHERE UPPER(c.severity) = $1 AND (LOWER(v.vendor_name) LIKE $2 ESCAPE '\\' OR LOWER(p.product_name) LIKE $3 ESCAPE '\\')")
		assert.Contains(t, query, "ORDER BY c.cve_id ASC, v.vendor_name ASC")
		assert.Contains(t, query, "LIMIT $4 OFFSET $5")
		assert.NotContains(t, query, "Ac%me")
		assert.Equal(t, []any{"CRITICAL", `%ac\%me%`, `%ac\%me%`, 13, 24}, args)
	})

	t.Run("unknown severity is kept as a literal predicate", func(t *testing.T) {
		_, args := b.list(vulnerability.NewFilter("bogus", ""), vulnerability.NewSort("", ""), pagination.New(1, 12))
		assert.Equal(t, "BOGUS", args[0])
	})

	t.Run("severity sort uses rank", func(t *testing.T) {
		query, _ := b.list(vulnerability.NewFilter("", ""), vulnerability.NewSort("severity", "desc"), pagination.New(1, 12))
		assert.Contains(t, query, "WHEN 'CRITICAL' THEN 5")
		assert.Contains(t, query, "ELSE 1 END DESC, c.cve_id DESC")
	})

	t.Run("unknown sort falls back to date", func(t *testing.T) {
		bogus, _ := b.list(vulnerability.NewFilter("", ""), vulnerability.NewSort("bogus; DROP TABLE cve", "sideways"), pagination.New(1, 12))
		date, _ := b.list(vulnerability.NewFilter("", ""), vulnerability.NewSort("date", "desc"), pagination.New(1, 12))
		assert.Equal(t, date, bogus)
		assert.NotContains(t, bogus, "DROP")
	})
}

func TestQueryBuilder_RecentCounts(t *testing.T) {
	b := newQueryBuilder(SQLiteDialect)
	since := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	query, args := b.recentCounts(vulnerability.NewFilter("HIGH", "acme").WithoutSeverity(), since)

	assert.NotContains(t, query, "UPPER(c.severity) = ?")
	assert.Contains(t, query, "COUNT(DISTINCT c.cve_id)")
	assert.Contains(t, query, "c.published_date >= ?")
	assert.True(t, strings.HasSuffix(query, "GROUP BY UPPER(c.severity)"))
	assert.Equal(t, []any{"%acme%", "%acme%", "2026-10-12"}, args)
}

func TestQueryBuilder_Statistics(t *testing.T) {
	b := newQueryBuilder(PostgresDialect)
	vendor := vulnerability.Scope{Kind: vulnerability.ScopeVendor, Name: "Acme"}
	product := vulnerability.Scope{Kind: vulnerability.ScopeProduct, Name: "Widget"}

	query, args := b.severityDistribution(product)
	assert.Contains(t, query, "WHERE p.product_name = $1")
	assert.NotContains(t, query, "LEFT JOIN")
	assert.Equal(t, []any{"Widget"}, args)

	since := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	query, args = b.monthlyCounts(vendor, since)
	assert.Contains(t, query, "SELECT to_char(c.published_date, 'YYYY-MM')")
	assert.Contains(t, query, "WHERE v.vendor_name = $1 AND c.published_date >= $2")
	assert.Equal(t, []any{"Acme", "2025-11-01"}, args)

	query, args = b.topCWEs(vendor, 10)
	assert.Contains(t, query, "UPPER(c.cwe_id) <> $2")
	assert.Contains(t, query, "LIMIT $3")
	assert.Equal(t, []any{"Acme", "UNKNOWN", 10}, args)

	query, args = b.topProducts("Acme", 10)
	assert.Contains(t, query, "GROUP BY p.product_name ORDER BY cnt DESC")
	assert.Equal(t, []any{"Acme", 10}, args)
}
