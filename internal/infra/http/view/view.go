// Package view renders the dashboard HTML from embedded templates.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openctemio/cvedash/internal/app"
	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/pagination"
)

//go:embed templates/*.gotpl
var templates embed.FS

const (
	pageTemplate = "index.html.gotpl"
	rowsTemplate = "rows"
)

// Renderer renders the full page and the table-row fragment.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(vulnerability.DateLayout)
		},
		"lower": func(s fmt.Stringer) string {
			return strings.ToLower(s.String())
		},
	}).ParseFS(templates, "templates/*.gotpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// RenderPage writes the full dashboard page.
func (r *Renderer) RenderPage(w io.Writer, page Page) error {
	return r.tmpl.ExecuteTemplate(w, pageTemplate, page)
}

// RenderRows writes only the table rows for a partial update.
func (r *Renderer) RenderRows(w io.Writer, rows []*vulnerability.Vulnerability) error {
	return r.tmpl.ExecuteTemplate(w, rowsTemplate, rows)
}

// Page is the model of the full dashboard page.
type Page struct {
	Vulnerabilities []*vulnerability.Vulnerability
	Counts          []vulnerability.SeverityCount
	TotalCount      int

	Filter    string
	Search    string
	SortBy    vulnerability.SortField
	SortOrder pagination.SortOrder

	Page     int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool

	RecentDays  int
	GeneratedAt time.Time
}

// NewPage builds the page model from a list result.
func NewPage(result *app.ListResult) Page {
	return Page{
		Vulnerabilities: result.Window.Items,
		Counts:          result.Counts.Ordered(),
		TotalCount:      result.TotalCount,
		Filter:          result.Params.Filter.Severity,
		Search:          result.Params.Filter.Search,
		SortBy:          result.Params.Sort.Field,
		SortOrder:       result.Params.Sort.Order,
		Page:            result.Window.Page,
		PrevPage:        result.Window.PrevPage(),
		NextPage:        result.Window.NextPage(),
		HasPrev:         result.Window.HasPrev,
		HasNext:         result.Window.HasNext,
		RecentDays:      result.RecentDays,
		GeneratedAt:     result.GeneratedAt,
	}
}

// Tab is one severity filter tab.
type Tab struct {
	Label  string
	Count  int
	Active bool
	URL    string
}

// Tabs returns the severity tabs in display order, ALL first.
func (p Page) Tabs() []Tab {
	tabs := []Tab{{
		Label:  vulnerability.SeverityFilterAll,
		Count:  p.TotalCount,
		Active: p.Filter == vulnerability.SeverityFilterAll,
		URL:    p.FilterURL(vulnerability.SeverityFilterAll),
	}}
	for _, c := range p.Counts {
		tabs = append(tabs, Tab{
			Label:  c.Severity.String(),
			Count:  c.Count,
			Active: p.Filter == c.Severity.String(),
			URL:    p.FilterURL(c.Severity.String()),
		})
	}
	return tabs
}

// FilterURL links to the first page of a severity tab, keeping search and sort.
func (p Page) FilterURL(severity string) string {
	return p.link(severity, p.SortBy, p.SortOrder, 1)
}

// SortURL links to the first page sorted by field. Selecting the active
// field again flips the direction.
func (p Page) SortURL(field string) string {
	f := vulnerability.ParseSortField(field)
	order := pagination.SortDesc
	if f == p.SortBy {
		order = p.SortOrder.Toggle()
	}
	return p.link(p.Filter, f, order, 1)
}

// SortIndicator returns the arrow shown next to the active sort column.
func (p Page) SortIndicator(field string) string {
	if vulnerability.ParseSortField(field) != p.SortBy {
		return ""
	}
	if p.SortOrder == pagination.SortAsc {
		return "▲"
	}
	return "▼"
}

// PageURL links to page n of the current view.
func (p Page) PageURL(n int) string {
	return p.link(p.Filter, p.SortBy, p.SortOrder, n)
}

func (p Page) link(severity string, field vulnerability.SortField, order pagination.SortOrder, page int) string {
	q := url.Values{}
	q.Set("filter", severity)
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	q.Set("sort_by", field.String())
	q.Set("sort_order", order.Lower())
	q.Set("page", strconv.Itoa(page))
	return "/?" + q.Encode()
}
