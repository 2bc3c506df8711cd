// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// RotateDependencies defines the interface for forced rotations.
type RotateDependencies interface {
	ForceRotate(ctx context.Context) (uint64, error)
}

type rotateResponse struct {
	Status  string `json:"status"`
	EpochID uint64 `json:"epoch_id"`
}

// RotateHandler handles forced rotation requests.
type RotateHandler struct {
	deps RotateDependencies
}

// NewRotateHandler creates a new rotate handler.
func NewRotateHandler(deps RotateDependencies) *RotateHandler {
	return &RotateHandler{deps: deps}
}

// HandlePostRotate handles POST /v1/rotate requests. The rotation completes
// before the response is written.
func (h *RotateHandler) HandlePostRotate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rotate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	epochID, err := h.deps.ForceRotate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, rotateResponse{Status: "rotated", EpochID: epochID})
}
