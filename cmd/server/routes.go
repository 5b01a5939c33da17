package main

import (
	"github.com/spf13/cobra"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/internal/infra/http"
	"github.com/openctemio/cvedash/internal/infra/http/routes"
	"github.com/openctemio/cvedash/pkg/logger"
)

var (
	routeFormat string
	routeMethod string
	routePath   string
	routeSort   string
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print all registered routes and exit",
	Long: `Print the HTTP routes the server registers.

No database connection is opened.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log := logger.NewNop()
		handlers, err := NewHandlers(&HandlerDeps{Config: cfg, Log: log})
		if err != nil {
			return err
		}

		server := http.NewServer(cfg, log)
		defer func() { _ = server.Shutdown(cmd.Context()) }()
		routes.Register(server.Router(), handlers)

		stats := http.CollectRoutes(server.Router())
		return http.PrintRoutes(cmd.OutOrStdout(), stats, routeFormat, http.RouteFilters{
			Method: routeMethod,
			Path:   routePath,
			SortBy: routeSort,
		})
	},
}

func init() {
	routesCmd.Flags().StringVar(&routeFormat, "format", "table", "Output format: table, json, yaml, csv, simple")
	routesCmd.Flags().StringVar(&routeMethod, "method", "", "Filter routes by HTTP method")
	routesCmd.Flags().StringVar(&routePath, "path", "", "Filter routes containing this path")
	routesCmd.Flags().StringVar(&routeSort, "sort", "path", "Sort routes by: path, method, handler")
}
