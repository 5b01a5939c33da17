package handler

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the store ping of a readiness check.
const readyTimeout = 5 * time.Second

// StorePinger reports whether the CVE store answers.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	store StorePinger
}

// NewHealthHandler creates a HealthHandler. With a nil store, readiness is
// reported without a store check.
func NewHealthHandler(store StorePinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StoreCheck is the outcome of pinging the CVE store. The cause of a
// failure is never returned.
type StoreCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
}

// ReadyResponse is the readiness body.
type ReadyResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Store     *StoreCheck `json:"store,omitempty"`
}

// Health answers the liveness check. It never touches the store.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// Ready answers the readiness check: 200 when the CVE store answers a ping,
// 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Timestamp: time.Now().UTC()}
	code := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		start := time.Now()
		err := h.store.Ping(ctx)
		resp.Store = &StoreCheck{Status: "ok", Latency: time.Since(start).String()}
		if err != nil {
			resp.Status = "not_ready"
			resp.Store.Status = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, resp)
}
