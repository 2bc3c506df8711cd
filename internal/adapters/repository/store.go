// Package repository defines the benchmark score store interface and errors.
package repository

import (
	"context"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// Store holds the most recently submitted benchmark record per node.
type Store interface {
	// Submit stores rec as the latest record for its node, replacing any
	// prior record wholesale. Ordering between submissions for the same
	// node is by arrival, not by embedded timestamp. Malformed records are
	// rejected with a validation error.
	Submit(ctx context.Context, rec model.ScoreRecord) error

	// Get returns the latest record for a node.
	// Returns ErrNotFound if the node has never submitted.
	Get(ctx context.Context, nodeID string) (model.ScoreRecord, error)

	// SnapshotAll returns a consistent copy of all current records, used as
	// the evaluation input at rotation time.
	SnapshotAll(ctx context.Context) map[string]model.ScoreRecord

	// Count returns the number of nodes with a stored record.
	Count(ctx context.Context) int
}
