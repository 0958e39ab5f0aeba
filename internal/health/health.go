// Package health serves liveness and readiness probes.
package health

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/samiti/portal/internal/db"
	"github.com/samiti/portal/internal/response"
)

const readyTimeout = 2 * time.Second

// Handler answers /health and /health/ready.
type Handler struct {
	db  db.Pinger
	log *slog.Logger
}

// NewHandler creates a Handler. A nil pinger makes readiness always succeed.
func NewHandler(p db.Pinger, log *slog.Logger) *Handler {
	return &Handler{db: p, log: log}
}

// Routes mounts the probes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Live)
	r.Get("/health/ready", h.Ready)
}

// Live reports that the process is serving requests.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the database is reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := db.Ready(r.Context(), h.db, readyTimeout); err != nil {
			h.log.WarnContext(r.Context(), "readiness check failed", "err", err)
			response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
