package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/openctemio/cvedash/internal/app"
	"github.com/openctemio/cvedash/internal/infra/http/middleware"
	"github.com/openctemio/cvedash/internal/infra/http/view"
	"github.com/openctemio/cvedash/internal/metrics"
	"github.com/openctemio/cvedash/pkg/apierror"
	"github.com/openctemio/cvedash/pkg/domain/vulnerability"
	"github.com/openctemio/cvedash/pkg/logger"
)

// DashboardHandler handles the vulnerability list and statistics endpoints.
type DashboardHandler struct {
	dashboardService *app.DashboardService
	renderer         *view.Renderer
	logger           *logger.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *app.DashboardService, renderer *view.Renderer, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		renderer:         renderer,
		logger:           log,
	}
}

// SeverityCounts serializes the five severity counts as an object in
// display order.
type SeverityCounts []vulnerability.SeverityCount

// MarshalJSON implements json.Marshaler.
func (c SeverityCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.Severity.String())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(sc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PartialResponse is the body of a partial list update.
type PartialResponse struct {
	HTML       string         `json:"html"`
	HasPrev    bool           `json:"has_prev"`
	HasNext    bool           `json:"has_next"`
	Counts     SeverityCounts `json:"counts"`
	TotalCount int            `json:"total_count"`
}

// Index renders the vulnerability list.
// @Summary      List vulnerabilities
// @Description  Returns the dashboard page, or the table rows and counts as JSON when X-Requested-With is XMLHttpRequest
// @Tags         Dashboard
// @Produce      html,json
// @Param        filter      query  string  false  "Severity label or ALL"
// @Param        search      query  string  false  "Vendor or product substring"
// @Param        sort_by     query  string  false  "id, severity or date"
// @Param        sort_order  query  string  false  "asc or desc"
// @Param        page        query  int     false  "Page number"
// @Success      200  {object}  PartialResponse
// @Failure      500  {object}  apierror.Response
// @Router       / [get]
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partial := middleware.IsPartial(r)
	q := r.URL.Query()

	result, err := h.dashboardService.ListVulnerabilities(ctx, app.ListQuery{
		Severity:  q.Get("filter"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Page:      q.Get("page"),
	})
	if err != nil {
		h.fail(w, r, partial, err)
		return
	}

	var buf bytes.Buffer
	if partial {
		if err := h.renderer.RenderRows(&buf, result.Window.Items); err != nil {
			h.fail(w, r, partial, err)
			return
		}
		metrics.RecordPageView(true)
		writeJSON(w, http.StatusOK, PartialResponse{
			HTML:       buf.String(),
			HasPrev:    result.Window.HasPrev,
			HasNext:    result.Window.HasNext,
			Counts:     SeverityCounts(result.Counts.Ordered()),
			TotalCount: result.TotalCount,
		})
		return
	}

	if err := h.renderer.RenderPage(&buf, view.NewPage(result)); err != nil {
		h.fail(w, r, partial, err)
		return
	}
	metrics.RecordPageView(false)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// fail logs and reports err and answers with a generic 500.
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, partial bool, err error) {
	h.logger.WithContext(r.Context()).Error("failed to render vulnerability list",
		"error", err,
		"partial", partial,
		"query", r.URL.RawQuery,
	)
	sentry.CurrentHub().CaptureException(err)

	middleware.WriteError(w, r, apierror.ListFailed(err))
}

// SeverityCountResponse is one severity distribution entry.
type SeverityCountResponse struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// TrendPointResponse is one month of the registration trend.
type TrendPointResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// CWECountResponse is one weakness category entry.
type CWECountResponse struct {
	CWEID string `json:"cwe_id"`
	Count int    `json:"count"`
}

// ProductCountResponse is one affected product entry.
type ProductCountResponse struct {
	ProductName string `json:"product_name"`
	Count       int    `json:"count"`
}

// EntityStatsResponse is the body of a statistics request.
type EntityStatsResponse struct {
	SeverityDistribution []SeverityCountResponse `json:"severity_distribution"`
	DailyTrend           []TrendPointResponse    `json:"daily_trend"`
	TrendChartTitle      string                  `json:"trend_chart_title"`
	CWETop10             []CWECountResponse      `json:"cwe_top10"`
	VendorProductTop10   *[]ProductCountResponse `json:"vendor_product_top10,omitempty"`
}

// Stats returns the statistics of a vendor or product.
// @Summary      Get vendor or product statistics
// @Description  Returns severity distribution, monthly trend and top weakness categories. Product wins when both are given.
// @Tags         Dashboard
// @Produce      json
// @Param        vendor   query  string  false  "Exact vendor name"
// @Param        product  query  string  false  "Exact product name"
// @Success      200  {object}  EntityStatsResponse
// @Router       /api/stats [get]
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, ok := vulnerability.ResolveScope(q.Get("vendor"), q.Get("product"))
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	stats := h.dashboardService.GetEntityStats(r.Context(), scope)
	writeJSON(w, http.StatusOK, toEntityStatsResponse(stats))
}

func toEntityStatsResponse(s *app.EntityStats) EntityStatsResponse {
	resp := EntityStatsResponse{
		SeverityDistribution: make([]SeverityCountResponse, 0, len(s.SeverityDistribution)),
		DailyTrend:           make([]TrendPointResponse, 0, len(s.MonthlyTrend)),
		TrendChartTitle:      s.TrendTitle,
		CWETop10:             make([]CWECountResponse, 0, len(s.TopCWEs)),
	}
	for _, c := range s.SeverityDistribution {
		resp.SeverityDistribution = append(resp.SeverityDistribution, SeverityCountResponse{
			Severity: c.Severity.String(),
			Count:    c.Count,
		})
	}
	for _, m := range s.MonthlyTrend {
		resp.DailyTrend = append(resp.DailyTrend, TrendPointResponse{Date: m.Month, Count: m.Count})
	}
	for _, c := range s.TopCWEs {
		resp.CWETop10 = append(resp.CWETop10, CWECountResponse{CWEID: c.CWEID, Count: c.Count})
	}
	if s.TopProducts != nil {
		products := make([]ProductCountResponse, 0, len(s.TopProducts))
		for _, p := range s.TopProducts {
			products = append(products, ProductCountResponse{ProductName: p.ProductName, Count: p.Count})
		}
		resp.VendorProductTop10 = &products
	}
	return resp
}
