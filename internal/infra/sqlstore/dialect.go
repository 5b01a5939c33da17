package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openctemio/cvedash/internal/config"
)

// Dialect captures the SQL differences between the supported engines.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	name     string
	numbered bool
}

// Supported dialects.
var (
	PostgresDialect = Dialect{name: "postgres", numbered: true}
	SQLiteDialect   = Dialect{name: "sqlite"}
)

// DialectFor returns the dialect spoken by a database/sql driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverPostgres, config.DriverPgx:
		return PostgresDialect, nil
	case config.DriverSQLite:
		return SQLiteDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// Name returns the dialect name.
func (d Dialect) Name() string {
	return d.name
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
// Question marks inside single-quoted literals are left untouched.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// MonthKey returns an expression rendering a date column as YYYY-MM.
func (d Dialect) MonthKey(column string) string {
	if d == PostgresDialect {
		return "to_char(" + column + ", 'YYYY-MM')"
	}
	return "strftime('%Y-%m', " + column + ")"
}
