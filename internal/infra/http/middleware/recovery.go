package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/openctemio/cvedash/pkg/apierror"
	"github.com/openctemio/cvedash/pkg/logger"
)

// Recover turns a handler panic into a 500 shaped like any other dashboard
// failure. The panic goes to Sentry when a client is bound. withStack adds
// the goroutine stack to the log line.
func Recover(log *logger.Logger, withStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				eventID := sentry.CurrentHub().Recover(p)
				attrs := []any{"panic", p, "path", r.URL.Path}
				if eventID != nil {
					attrs = append(attrs, "sentry_event_id", string(*eventID))
				}
				if withStack {
					attrs = append(attrs, "stack", string(debug.Stack()))
				}
				log.WithContext(r.Context()).Error("panic recovered", attrs...)

				WriteError(w, r, apierror.InternalError(fmt.Errorf("panic: %v", p)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
