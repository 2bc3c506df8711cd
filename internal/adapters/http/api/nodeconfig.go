// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// NodeConfigDependencies defines the interface for per-node config queries.
// The view must come from one committed epoch; the handler never stitches a
// response together from separate reads.
type NodeConfigDependencies interface {
	NodeView(ctx context.Context, nodeID string) (model.NodeView, bool)
}

type nodeConfigResponse struct {
	NodeID    string `json:"node_id"`
	EpochID   uint64 `json:"epoch_id"`
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
	PSKBase64 string `json:"psk_base64,omitempty"`
}

// NodeConfigHandler handles per-node config requests.
type NodeConfigHandler struct {
	deps NodeConfigDependencies
}

// NewNodeConfigHandler creates a new node config handler.
func NewNodeConfigHandler(deps NodeConfigDependencies) *NodeConfigHandler {
	return &NodeConfigHandler{deps: deps}
}

// HandleGetConfig handles GET /v1/config/{node_id} requests. The PSK is
// present only for nodes ALLOWED in the epoch the response describes.
func (h *NodeConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_config"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	nodeID, ok := nodeFromPath(r.URL.Path, "/v1/config/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	view, ok := h.deps.NodeView(r.Context(), nodeID)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not_ready", nil)
		return
	}

	resp := nodeConfigResponse{
		NodeID:  nodeID,
		EpochID: view.EpochID,
		Reason:  "no membership decision",
	}

	if view.HasVerdict {
		resp.Allowed = view.Verdict.Allowed()
		resp.Reason = view.Verdict.Reason
	}
	// The verdict gate holds even if the view carries a key: a PSK is never
	// disclosed next to a DENIED decision.
	if view.HasKey && resp.Allowed {
		resp.PSKBase64 = base64.StdEncoding.EncodeToString(view.Key.Key)
	}

	writeJSON(w, http.StatusOK, resp)
}
