// Package middleware holds the HTTP middleware wrapped around every
// dashboard route.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/openctemio/cvedash/pkg/apierror"
	"github.com/openctemio/cvedash/pkg/logger"
)

// A request carrying PartialHeader set to PartialValue wants the table rows
// and counts as JSON instead of the full page.
const (
	PartialHeader = "X-Requested-With"
	PartialValue  = "XMLHttpRequest"
)

// opsPaths are the liveness, readiness and scrape endpoints. They are not
// access-logged and not rate limited.
var opsPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// IsPartial reports whether r is a partial list update.
func IsPartial(r *http.Request) bool {
	return r.Header.Get(PartialHeader) == PartialValue
}

// WriteError answers r with e. Partial updates get the JSON payload, page
// loads get the bare status text.
func WriteError(w http.ResponseWriter, r *http.Request, e *apierror.Error) {
	if IsPartial(r) {
		e.Write(w, GetRequestID(r.Context()))
		return
	}
	http.Error(w, http.StatusText(e.Status), e.Status)
}

// RequestID tags the request context and response with an ID, reusing the
// caller's X-Request-ID when present.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), logger.ContextKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(logger.ContextKeyRequestID).(string)
	return id
}

// statusRecorder remembers the status code and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
