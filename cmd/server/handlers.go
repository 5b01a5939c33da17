package main

import (
	"github.com/openctemio/cvedash/internal/app"
	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/internal/infra/http/handler"
	"github.com/openctemio/cvedash/internal/infra/http/routes"
	"github.com/openctemio/cvedash/internal/infra/http/view"
	"github.com/openctemio/cvedash/internal/infra/sqlstore"
	"github.com/openctemio/cvedash/pkg/logger"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *sqlstore.DB // nil when only listing routes
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) (routes.Handlers, error) {
	cfg := deps.Config
	log := deps.Log

	renderer, err := view.NewRenderer()
	if err != nil {
		return routes.Handlers{}, err
	}

	var (
		dashboardService *app.DashboardService
		store            handler.StorePinger
	)
	if deps.DB != nil {
		repo := sqlstore.NewVulnerabilityRepository(deps.DB)
		dashboardService = app.NewDashboardService(repo, log,
			app.WithPageSize(cfg.Dashboard.PageSize),
			app.WithRecentDays(cfg.Dashboard.RecentDays),
		)
		store = deps.DB
	}

	return routes.Handlers{
		Health:    handler.NewHealthHandler(store),
		Dashboard: handler.NewDashboardHandler(dashboardService, renderer, log),
	}, nil
}
