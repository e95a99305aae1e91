package raft

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DebugHandler serves a small operator-facing surface over a LogDispatcher:
// live per-follower queue depth as JSON, and the dispatcher's Prometheus
// metrics. It mirrors this codebase's chi-router HTTP server construction
// (see the secret and tenant services).
type DebugHandler struct {
	dispatcher *LogDispatcher
	logger     *zap.Logger
}

// NewDebugHandler returns an http.Handler exposing GET /dispatcher and
// GET /metrics for dispatcher. reg must already have dispatcher.Metrics()
// registered; the caller owns the registry and may register other
// collectors alongside it.
func NewDebugHandler(dispatcher *LogDispatcher, logger *zap.Logger, reg *prometheus.Registry) http.Handler {
	h := &DebugHandler{dispatcher: dispatcher, logger: logger}

	r := chi.NewRouter()
	r.Get("/dispatcher", h.handleStats)
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	return r
}

func (h *DebugHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.dispatcher.Stats()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Warn("failed to encode dispatcher stats", zap.Error(err))
	}
}
