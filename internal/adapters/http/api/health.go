// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/pkg/metrics"
)

// HealthDependencies defines the interface for health checks.
type HealthDependencies interface {
	Epoch(ctx context.Context) *model.Snapshot
}

type healthResponse struct {
	Status  string `json:"status"`
	EpochID uint64 `json:"epoch_id"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var epochID uint64
	if snap := h.deps.Epoch(r.Context()); snap != nil {
		epochID = snap.EpochID
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", EpochID: epochID})
}

// MetricsHandler serves Prometheus metrics from the custom registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
