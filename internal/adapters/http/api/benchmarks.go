// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rng-ops/meshgate/internal/domain/model"
)

// BenchmarkDependencies defines the interface for submission processing.
type BenchmarkDependencies interface {
	SubmitBenchmark(ctx context.Context, rec model.ScoreRecord) (uint64, error)
}

// BenchmarksHandler handles benchmark submissions.
type BenchmarksHandler struct {
	deps BenchmarkDependencies
}

// NewBenchmarksHandler creates a new benchmarks handler.
func NewBenchmarksHandler(deps BenchmarkDependencies) *BenchmarksHandler {
	return &BenchmarksHandler{deps: deps}
}

// HandlePostBenchmark handles POST /v1/benchmarks/{node_id} requests.
func (h *BenchmarksHandler) HandlePostBenchmark(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_benchmark"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	nodeID, ok := nodeFromPath(r.URL.Path, "/v1/benchmarks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req benchmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(nodeID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	epochID, err := h.deps.SubmitBenchmark(r.Context(), req.record())
	if err != nil {
		if errors.Is(err, model.ErrInvalidRecord) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if errors.Is(err, model.ErrAttestationRejected) {
			writeError(w, http.StatusForbidden, "attestation_rejected", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		Status:       "received",
		NodeID:       nodeID,
		SubmissionID: uuid.New().String(),
		EpochID:      epochID,
	})
}
