package middleware

import (
	"net/http"
	"time"

	"github.com/openctemio/cvedash/internal/metrics"
)

// Metrics records request counts, latency and response size. Scrapes of
// /metrics are not recorded.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			metrics.ObserveRequest(r.URL.Path, IsPartial(r), rec.status, rec.size, time.Since(start))
		})
	}
}
