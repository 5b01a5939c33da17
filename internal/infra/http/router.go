package http

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface the dashboard registers on. Every dashboard
// route is a read-only GET.
type Router interface {
	// GET registers path. Route middleware runs inside the global chain,
	// first listed outermost.
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group mounts routes under prefix with shared middleware.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use appends global middleware. It must be called before any route
	// is registered.
	Use(middlewares ...Middleware)

	Handler() http.Handler

	// Walk visits every registered route; the route printer is built on it.
	Walk(fn func(method, path string, handler http.Handler) error) error
}

// Chain wraps handler so that middlewares[0] runs first.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
