// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// EpochDependencies defines the interface for epoch queries.
type EpochDependencies interface {
	Epoch(ctx context.Context) *model.Snapshot
}

// nodeStatus is the per-node slice of the epoch response.
type nodeStatus struct {
	Membership model.Status `json:"membership"`
	Reason     string       `json:"reason,omitempty"`
	AgeSec     float64      `json:"last_benchmark_age_sec,omitempty"`
}

type epochResponse struct {
	EpochID    uint64                `json:"epoch_id"`
	ExpiryUTC  time.Time             `json:"expiry_utc"`
	SecretHash string                `json:"secret_hash"`
	Nodes      map[string]nodeStatus `json:"nodes"`
}

// EpochHandler handles epoch queries.
type EpochHandler struct {
	deps EpochDependencies
}

// NewEpochHandler creates a new epoch handler.
func NewEpochHandler(deps EpochDependencies) *EpochHandler {
	return &EpochHandler{deps: deps}
}

// HandleGetEpoch handles GET /v1/epoch requests.
func (h *EpochHandler) HandleGetEpoch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	snap := h.deps.Epoch(r.Context())
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", nil)
		return
	}

	nodes := make(map[string]nodeStatus, len(snap.Verdicts))
	for id, v := range snap.Verdicts {
		nodes[id] = nodeStatus{
			Membership: v.Status,
			Reason:     v.Reason,
			AgeSec:     v.BenchmarkAgeSec,
		}
	}

	writeJSON(w, http.StatusOK, epochResponse{
		EpochID:    snap.EpochID,
		ExpiryUTC:  snap.ExpiresAt,
		SecretHash: snap.SecretFingerprint,
		Nodes:      nodes,
	})
}
