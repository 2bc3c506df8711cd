// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitBenchmark stores a validated submission and returns the current
	// epoch id for the receipt.
	SubmitBenchmark(ctx context.Context, rec model.ScoreRecord) (uint64, error)

	// Read operations expose the last committed epoch state. NodeView reads
	// verdict and key material from one epoch, never a mix of two.
	Epoch(ctx context.Context) *model.Snapshot
	NodeView(ctx context.Context, nodeID string) (model.NodeView, bool)

	// ForceRotate synchronously runs one rotation out of schedule.
	ForceRotate(ctx context.Context) (uint64, error)
}

// Server wires HTTP routes for the controller API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	benchmarksHandler *BenchmarksHandler
	epochHandler      *EpochHandler
	nodeConfigHandler *NodeConfigHandler
	rotateHandler     *RotateHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(deps),
		statsHandler:      NewStatsHandler(statsProvider),
		benchmarksHandler: NewBenchmarksHandler(deps),
		epochHandler:      NewEpochHandler(deps),
		nodeConfigHandler: NewNodeConfigHandler(deps),
		rotateHandler:     NewRotateHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/benchmarks/", MetricsMiddleware(s.benchmarksHandler.HandlePostBenchmark, "benchmarks"))
	mux.HandleFunc("/v1/epoch", MetricsMiddleware(s.epochHandler.HandleGetEpoch, "epoch"))
	mux.HandleFunc("/v1/config/", MetricsMiddleware(s.nodeConfigHandler.HandleGetConfig, "config"))
	mux.HandleFunc("/v1/rotate", MetricsMiddleware(s.rotateHandler.HandlePostRotate, "rotate"))
}

// benchmarkRequest mirrors the submission payload for POST /v1/benchmarks/{node_id}.
type benchmarkRequest struct {
	NodeID       string             `json:"node_id"`
	Timestamp    string             `json:"timestamp"`
	SuiteVersion string             `json:"suite_version"`
	Scores       map[string]float64 `json:"scores"`
	Notes        string             `json:"notes,omitempty"`
	Signature    *string            `json:"signature,omitempty"`
}

func (b benchmarkRequest) validate(pathNodeID string) error {
	switch {
	case strings.TrimSpace(b.NodeID) == "":
		return errors.New("missing node_id")
	case b.NodeID != pathNodeID:
		return errors.New("node_id mismatch")
	case strings.TrimSpace(b.Timestamp) == "":
		return errors.New("missing timestamp")
	case len(b.Scores) == 0:
		return errors.New("missing scores")
	}
	if _, err := time.Parse(time.RFC3339, b.Timestamp); err != nil {
		return errors.New("invalid timestamp; must be RFC3339")
	}
	return nil
}

// record converts the request into the domain submission shape.
func (b benchmarkRequest) record() model.ScoreRecord {
	ts, _ := time.Parse(time.RFC3339, b.Timestamp)

	var att model.Attestation = model.Unsigned{}
	if b.Signature != nil && *b.Signature != "" {
		att = model.Signed{Signature: *b.Signature}
	}

	return model.ScoreRecord{
		NodeID:       b.NodeID,
		SubmittedAt:  ts,
		SuiteVersion: b.SuiteVersion,
		Scores:       b.Scores,
		Notes:        b.Notes,
		Attestation:  att,
	}
}

type receiptResponse struct {
	Status       string `json:"status"`
	NodeID       string `json:"node_id"`
	SubmissionID string `json:"submission_id"`
	EpochID      uint64 `json:"epoch_id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// nodeFromPath extracts the trailing path segment after prefix, rejecting
// empty or nested values.
func nodeFromPath(path, prefix string) (string, bool) {
	nodeID := strings.TrimPrefix(path, prefix)
	if nodeID == "" || strings.Contains(nodeID, "/") {
		return "", false
	}
	return nodeID, true
}
