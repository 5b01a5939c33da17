package routes

import (
	"github.com/openctemio/cvedash/internal/infra/http/handler"
)

// registerDashboardRoutes registers the list page and the statistics API.
// Both are public and read-only.
func registerDashboardRoutes(router Router, h *handler.DashboardHandler) {
	router.GET("/", h.Index)

	router.Group("/api", func(r Router) {
		r.GET("/stats", h.Stats)
	})
}
