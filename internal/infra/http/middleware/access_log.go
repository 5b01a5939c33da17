package middleware

import (
	"net/http"
	"time"

	"github.com/openctemio/cvedash/pkg/logger"
)

// AccessLog writes one line per dashboard request. Server errors log at
// error level, client errors and requests slower than slow at warn.
// A zero slow disables the slow-request warning.
func AccessLog(log *logger.Logger, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opsPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"partial", IsPartial(r),
				"status", rec.status,
				"bytes", rec.size,
				"duration", elapsed,
				"client", r.RemoteAddr,
			}

			reqLog := log.WithContext(r.Context())
			switch {
			case rec.status >= http.StatusInternalServerError:
				reqLog.Error("http request", attrs...)
			case rec.status >= http.StatusBadRequest:
				reqLog.Warn("http request", attrs...)
			case slow > 0 && elapsed > slow:
				reqLog.Warn("slow http request", attrs...)
			default:
				reqLog.Info("http request", attrs...)
			}
		})
	}
}
