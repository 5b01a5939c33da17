package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/pagination"
)

// schemaStatements create the four consumed relations. The DDL is portable
// between PostgreSQL and SQLite.
var schemaStatements = []string{
	`CREATE TABLE vendor (
		vendor_id INTEGER PRIMARY KEY,
		vendor_name TEXT NOT NULL
	)`,
	`CREATE TABLE product (
		product_id INTEGER PRIMARY KEY,
		product_name TEXT NOT NULL,
		vendor_id INTEGER NOT NULL REFERENCES vendor (vendor_id)
	)`,
	`CREATE TABLE cve (
		cve_id TEXT PRIMARY KEY,
		description TEXT,
		severity TEXT,
		cwe_id TEXT,
		published_date DATE
	)`,
	`CREATE TABLE cve_product (
		cve_id TEXT NOT NULL REFERENCES cve (cve_id),
		product_id INTEGER NOT NULL REFERENCES product (product_id),
		PRIMARY KEY (cve_id, product_id)
	)`,
}

type fixtureCVE struct {
	id       string
	severity string
	cwe      any
	daysAgo  int
	products []int
}

const (
	productWidget = 1
	productGadget = 2
	productPortal = 3
	productEmpty  = 4
)

// fixtureCVEs holds 15 CRITICAL and 5 other entries relative to now:
//
//	Acme/Widget:   CVE-2026-1001..1015 CRITICAL, 0..14 days ago
//	Acme/Gadget:   CVE-2026-2004 LOW, 40 days ago
//	Globex/Portal: CVE-2026-2001 HIGH today, CVE-2026-2002 HIGH 10 days ago,
//	               CVE-2026-2003 "medium" 1 day ago
//	(unlinked):    CVE-2026-2005 "Unknown" 2 days ago
//	Acme/Empty has no vulnerabilities.
func fixtureCVEs() []fixtureCVE {
	cves := make([]fixtureCVE, 0, 20)
	for i := 0; i < 15; i++ {
		var cwe any
		switch {
		case i < 10:
			cwe = "CWE-79"
		case i < 14:
			cwe = "CWE-89"
		}
		cves = append(cves, fixtureCVE{
			id:       fmt.Sprintf("CVE-2026-%d", 1001+i),
			severity: "CRITICAL",
			cwe:      cwe,
			daysAgo:  i,
			products: []int{productWidget},
		})
	}
	return append(cves,
		fixtureCVE{id: "CVE-2026-2001", severity: "HIGH", cwe: "UNKNOWN", daysAgo: 0, products: []int{productPortal}},
		fixtureCVE{id: "CVE-2026-2002", severity: "high", cwe: "CWE-22", daysAgo: 10, products: []int{productPortal}},
		fixtureCVE{id: "CVE-2026-2003", severity: "medium", cwe: "", daysAgo: 1, products: []int{productPortal}},
		fixtureCVE{id: "CVE-2026-2004", severity: "LOW", cwe: "CWE-79", daysAgo: 40, products: []int{productGadget}},
		fixtureCVE{id: "CVE-2026-2005", severity: "Unknown", cwe: nil, daysAgo: 2},
	)
}

// seed creates the schema and loads the fixtures with dates relative to now.
func seed(t *testing.T, db *DB, now time.Time) {
	t.Helper()
	ctx := context.Background()

	for _, stmt := range schemaStatements {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	exec := func(query string, args ...any) {
		_, err := db.ExecContext(ctx, db.Dialect().Rebind(query), args...)
		require.NoError(t, err)
	}

	exec(`INSERT INTO vendor (vendor_id, vendor_name) VALUES (?, ?), (?, ?)`, 1, "Acme", 2, "Globex")
	exec(`INSERT INTO product (product_id, product_name, vendor_id) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?), (?, ?, ?)`,
		productWidget, "Widget", 1,
		productGadget, "Gadget", 1,
		productPortal, "Portal", 2,
		productEmpty, "Empty", 1,
	)

	for _, c := range fixtureCVEs() {
		published := now.AddDate(0, 0, -c.daysAgo).Format(vulnerability.DateLayout)
		exec(`INSERT INTO cve (cve_id, description, severity, cwe_id, published_date) VALUES (?, ?, ?, ?, ?)`,
			c.id, "Description of "+c.id, c.severity, c.cwe, published)
		for _, p := range c.products {
			exec(`INSERT INTO cve_product (cve_id, product_id) VALUES (?, ?)`, c.id, p)
		}
	}
}

// newSQLiteDB opens a file-backed SQLite database under the test's temp dir.
func newSQLiteDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "cve.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// listAll runs List inside a session.
func listAll(t *testing.T, repo *VulnerabilityRepository, filter vulnerability.Filter, sort vulnerability.Sort, page int) []*vulnerability.Vulnerability {
	t.Helper()

	var rows []*vulnerability.Vulnerability
	err := repo.Session(context.Background(), func(r vulnerability.Reader) error {
		var err error
		rows, err = r.List(context.Background(), filter, sort, pagination.New(page, 12))
		return err
	})
	require.NoError(t, err)
	return rows
}

func ids(rows []*vulnerability.Vulnerability) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
