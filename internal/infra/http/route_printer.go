package http

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// RouteInfo holds information about a registered route.
type RouteInfo struct {
	Method  string `json:"method" yaml:"method"`
	Path    string `json:"path" yaml:"path"`
	Handler string `json:"handler" yaml:"handler"`
}

// RouteStats holds route statistics.
type RouteStats struct {
	Total   int            `json:"total" yaml:"total"`
	Methods map[string]int `json:"methods" yaml:"methods"`
	Routes  []RouteInfo    `json:"routes" yaml:"routes"`
}

// CollectRoutes walks the router and collects all registered routes.
func CollectRoutes(router Router) RouteStats {
	stats := RouteStats{
		Methods: make(map[string]int),
		Routes:  []RouteInfo{},
	}

	_ = router.Walk(func(method, path string, handler http.Handler) error {
		stats.Routes = append(stats.Routes, RouteInfo{
			Method:  method,
			Path:    path,
			Handler: getHandlerName(handler),
		})
		stats.Methods[method]++
		stats.Total++
		return nil
	})

	return stats
}

// getHandlerName extracts the handler function name using reflection.
func getHandlerName(handler http.Handler) string {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", handler)
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", handler)
	}
	parts := strings.Split(fn.Name(), "/")
	return strings.TrimSuffix(parts[len(parts)-1], "-fm")
}

// RouteFilters contains filter options for route listing.
type RouteFilters struct {
	Method string
	Path   string
	SortBy string
}

// PrintRoutes prints routes to the given writer in the specified format
// (table, json, yaml, csv or simple).
func PrintRoutes(w io.Writer, stats RouteStats, format string, filters RouteFilters) error {
	filtered := filterRoutes(stats.Routes, filters)
	sortRoutes(filtered, filters.SortBy)

	switch format {
	case "json":
		out := stats
		out.Routes = filtered
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		out := stats
		out.Routes = filtered
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "csv":
		return printCSV(w, filtered)
	case "simple":
		for _, r := range filtered {
			if _, err := fmt.Fprintf(w, "%-8s %s\n", r.Method, r.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		printTable(w, filtered, stats)
		return nil
	}
}

func filterRoutes(routes []RouteInfo, filters RouteFilters) []RouteInfo {
	filtered := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		if filters.Method != "" && !strings.EqualFold(r.Method, filters.Method) {
			continue
		}
		if filters.Path != "" && !strings.Contains(r.Path, filters.Path) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func sortRoutes(routes []RouteInfo, by string) {
	switch by {
	case "method":
		sort.Slice(routes, func(i, j int) bool {
			if routes[i].Method == routes[j].Method {
				return routes[i].Path < routes[j].Path
			}
			return routes[i].Method < routes[j].Method
		})
	case "handler":
		sort.Slice(routes, func(i, j int) bool {
			return routes[i].Handler < routes[j].Handler
		})
	default: // path
		sort.Slice(routes, func(i, j int) bool {
			if routes[i].Path == routes[j].Path {
				return routes[i].Method < routes[j].Method
			}
			return routes[i].Path < routes[j].Path
		})
	}
}

func printTable(w io.Writer, routes []RouteInfo, stats RouteStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Path", "Handler"})
	table.SetAutoWrapText(false)
	for _, r := range routes {
		table.Append([]string{r.Method, r.Path, r.Handler})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(stats.Total)})
	table.Render()
}

func printCSV(w io.Writer, routes []RouteInfo) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"method", "path", "handler"}); err != nil {
		return err
	}
	for _, r := range routes {
		if err := cw.Write([]string{r.Method, r.Path, r.Handler}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
