package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/metrics"
)

// Engine is the metrics/alerting surface the handlers read.
type Engine interface {
	Stats(ctx context.Context) metrics.Stats
	HealthCheck(ctx context.Context) metrics.Health
	Recent() []metrics.Alert
}

// Forcer enqueues on-demand scan jobs.
type Forcer interface {
	Force(ctx context.Context, which string) ([]string, error)
}

type OpsHandler struct {
	Engine Engine
	Forcer Forcer
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.Engine.HealthCheck(r.Context())

	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Stats(r.Context()))
}

func (h *OpsHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.Engine.Recent()
	if alerts == nil {
		alerts = []metrics.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// Force enqueues a scan run and returns the job ids without waiting on
// execution.
func (h *OpsHandler) Force(w http.ResponseWriter, r *http.Request) {
	which := chi.URLParam(r, "policy")

	ids, err := h.Forcer.Force(r.Context(), which)
	if err != nil {
		if len(ids) > 0 {
			// Partial enqueue: report what made it in alongside the failure.
			writeJSON(w, http.StatusInternalServerError, map[string]any{"job_ids": ids, "error": err.Error()})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_ids": ids})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
