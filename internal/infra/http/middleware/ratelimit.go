package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/pkg/apierror"
	"github.com/openctemio/cvedash/pkg/logger"
)

// idleClientTTL is how long a client keeps its bucket without requests.
const idleClientTTL = 3 * time.Minute

// RateLimiter hands out one token bucket per client address.
//
// The key is the host part of RemoteAddr. Forwarding headers are only
// honoured when the router rewrote RemoteAddr from them, which it does
// only for trusted proxies.
type RateLimiter struct {
	limit rate.Limit
	burst int
	log   *logger.Logger

	mu      sync.Mutex
	clients map[string]*client

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a limiter and its idle-client sweep.
func NewRateLimiter(cfg config.RateLimitConfig, log *logger.Logger) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSec),
		burst:   cfg.Burst,
		log:     log,
		clients: make(map[string]*client),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	every := cfg.CleanupInterval
	if every <= 0 {
		every = time.Minute
	}
	go rl.sweep(every)

	return rl
}

// Stop ends the sweep and waits for it. Repeated calls are no-ops.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.quit) })
	<-rl.done
}

func (rl *RateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.bucket
}

func (rl *RateLimiter) sweep(every time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.quit:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, c := range rl.clients {
				if now.Sub(c.lastSeen) > idleClientTTL {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// retryAfter is the whole number of seconds until one token is back.
func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rl.limit))))
}

// Handler limits every route except the operational endpoints.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opsPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		bucket := rl.bucket(key, time.Now())
		allowed := bucket.Allow()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(bucket.Tokens()))))

		if !allowed {
			rl.log.WithContext(r.Context()).Warn("rate limit exceeded",
				"client", key,
				"path", r.URL.Path,
				"partial", IsPartial(r),
			)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			WriteError(w, r, apierror.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit returns the limiting middleware and the function that stops its
// sweep on shutdown. When limiting is disabled both are no-ops.
func RateLimit(cfg config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, func() {}
	}
	rl := NewRateLimiter(cfg, log)
	return rl.Handler, rl.Stop
}

// clientKey is the host part of RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
