// Package routes registers all HTTP routes of the dashboard.
package routes

import (
	infrahttp "github.com/openctemio/cvedash/internal/infra/http"
	"github.com/openctemio/cvedash/internal/infra/http/handler"
)

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
}

// Register registers all application routes.
// This keeps route definitions in the infrastructure layer, not in main.
//
// Routes are organized across files by concern:
//   - dashboard.go: vulnerability list and statistics
//   - health.go: health, readiness and metrics
func Register(router Router, h Handlers) {
	registerHealthRoutes(router, h.Health)

	if h.Dashboard != nil {
		registerDashboardRoutes(router, h.Dashboard)
	}
}
