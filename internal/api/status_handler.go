package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/warden/internal/supervisor"
)

// PoolSnapshotter reports the serving pool's current state. Implemented
// by supervisor.HTTPPool.
type PoolSnapshotter interface {
	Snapshot() supervisor.PoolStatus
}

// StatusHandler serves the pool master's admin endpoints.
type StatusHandler struct {
	pool   PoolSnapshotter
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the given pool.
func NewStatusHandler(pool PoolSnapshotter, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{pool: pool, logger: logger}
}

// Router returns the admin router: GET /healthz for liveness probing,
// GET /status for the worker inventory.
func (h *StatusHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/status", h.Status)
	return r
}

// Health responds 200 once the master is serving; used by the start
// command's post-launch liveness probe.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health response", "error", err)
	}
}

// Status responds with the pool snapshot as JSON.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.pool.Snapshot()); err != nil {
		h.logger.Error("failed to encode pool status", "error", err)
	}
}
