package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/pkg/apierror"
	"github.com/openctemio/cvedash/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func partialRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(PartialHeader, PartialValue)
	return req
}

func decodeLog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

// =============================================================================
// Request ID and error shaping
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps an incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}

func TestWriteError(t *testing.T) {
	cause := errors.New("pq: connection refused")

	t.Run("partial update gets json", func(t *testing.T) {
		h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, r, apierror.InternalError(cause))
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, partialRequest("/?page=2"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NotContains(t, rec.Body.String(), "connection refused")

		var resp apierror.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, apierror.CodeInternalError, resp.Code)
		assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
	})

	t.Run("page load gets plain text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apierror.InternalError(cause))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error\n", rec.Body.String())
	})
}

// =============================================================================
// Access log and recovery
// =============================================================================

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})

	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	sleepy := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5 * time.Millisecond)
	})

	t.Run("logs server errors at error level", func(t *testing.T) {
		buf.Reset()
		AccessLog(log, 0)(failing).ServeHTTP(httptest.NewRecorder(), partialRequest("/?filter=HIGH&page=2"))

		entry := decodeLog(t, &buf)
		assert.Equal(t, "ERROR", entry["level"])
		assert.Equal(t, float64(500), entry["status"])
		assert.Equal(t, "filter=HIGH&page=2", entry["query"])
		assert.Equal(t, true, entry["partial"])
	})

	t.Run("warns on slow requests", func(t *testing.T) {
		buf.Reset()
		AccessLog(log, time.Millisecond)(sleepy).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		entry := decodeLog(t, &buf)
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "slow http request", entry["msg"])
	})

	t.Run("records the body size", func(t *testing.T) {
		buf.Reset()
		AccessLog(log, 0)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		entry := decodeLog(t, &buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, float64(2), entry["bytes"])
	})

	t.Run("skips operational endpoints", func(t *testing.T) {
		buf.Reset()
		for _, path := range []string{"/health", "/ready", "/metrics"} {
			AccessLog(log, 0)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		}
		assert.Zero(t, buf.Len())
	})
}

func TestRecover(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	for _, withStack := range []bool{false, true} {
		var buf bytes.Buffer
		log := logger.New(logger.Config{Level: "info", Format: "json", Output: &buf})

		rec := httptest.NewRecorder()
		Recover(log, withStack)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error\n", rec.Body.String())
		assert.Contains(t, buf.String(), "panic recovered")
		assert.Equal(t, withStack, bytes.Contains(buf.Bytes(), []byte(`"stack"`)))
	}

	t.Run("partial update gets json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Recover(logger.NewNop(), false)(panicking).ServeHTTP(rec, partialRequest("/"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), string(apierror.CodeInternalError))
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}

// =============================================================================
// Security headers, timeout and metrics
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(false)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, ContentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(true)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

	h = Timeout(0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestMetrics_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Metrics()(okHandler).ServeHTTP(rec, partialRequest("/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// =============================================================================
// Rate limiting
// =============================================================================

func newLimitedHandler(t *testing.T) http.Handler {
	t.Helper()
	mw, stop := RateLimit(config.RateLimitConfig{
		Enabled:         true,
		RequestsPerSec:  0.001,
		Burst:           2,
		CleanupInterval: time.Minute,
	}, logger.NewNop())
	t.Cleanup(stop)
	return mw(okHandler)
}

func serveFrom(h http.Handler, req *http.Request, remote string) *httptest.ResponseRecorder {
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	h := newLimitedHandler(t)
	get := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", nil) }

	assert.Equal(t, http.StatusOK, serveFrom(h, get(), "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, serveFrom(h, get(), "10.0.0.1:1001").Code)

	t.Run("page load over the limit", func(t *testing.T) {
		rec := serveFrom(h, get(), "10.0.0.1:1002")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "Too Many Requests\n", rec.Body.String())
	})

	t.Run("partial update over the limit", func(t *testing.T) {
		rec := serveFrom(h, partialRequest("/?page=2"), "10.0.0.1:1003")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), string(apierror.CodeRateLimitExceeded))
	})

	t.Run("health checks are never limited", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serveFrom(h, httptest.NewRequest(http.MethodGet, "/ready", nil), "10.0.0.1:1004").Code)
	})

	t.Run("other clients keep their own bucket", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serveFrom(h, get(), "10.0.0.2:1000").Code)
	})
}

func TestRateLimit_IgnoresForwardingHeaders(t *testing.T) {
	h := newLimitedHandler(t)

	spoofed := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		req.Header.Set("X-Forwarded-For", ip)
		return req
	}

	assert.Equal(t, http.StatusOK, serveFrom(h, spoofed("198.51.100.1"), "10.0.0.9:1000").Code)
	assert.Equal(t, http.StatusOK, serveFrom(h, spoofed("198.51.100.2"), "10.0.0.9:1001").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, spoofed("198.51.100.3"), "10.0.0.9:1002").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	mw, stop := RateLimit(config.RateLimitConfig{Enabled: false}, logger.NewNop())
	stop()

	rec := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSec: 1, Burst: 1}, logger.NewNop())
	rl.Stop()
	rl.Stop()
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:5555", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.7", "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}
