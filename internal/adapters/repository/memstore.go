package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// defaultShardCount balances lock contention against snapshot cost.
const defaultShardCount = 8

// shard holds a slice of the per-node records behind its own lock so that
// concurrent submissions for different nodes do not contend.
type shard struct {
	mu      sync.RWMutex
	records map[string]model.ScoreRecord
}

// MemStore implements Store with a sharded in-memory map.
type MemStore struct {
	shards []*shard
}

// NewMemStore creates an in-memory score store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	cfg := storeConfig{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &MemStore{shards: make([]*shard, cfg.shardCount)}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]model.ScoreRecord)}
	}
	return s
}

func (s *MemStore) shardFor(nodeID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(nodeID))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

// Submit stores rec as the latest record for its node, last-write-wins by
// arrival order.
func (s *MemStore) Submit(ctx context.Context, rec model.ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("submit rejected: %w", err)
	}

	sh := s.shardFor(rec.NodeID)
	sh.mu.Lock()
	sh.records[rec.NodeID] = rec
	sh.mu.Unlock()
	return nil
}

// Get returns the latest record for a node.
func (s *MemStore) Get(ctx context.Context, nodeID string) (model.ScoreRecord, error) {
	sh := s.shardFor(nodeID)
	sh.mu.RLock()
	rec, ok := sh.records[nodeID]
	sh.mu.RUnlock()
	if !ok {
		return model.ScoreRecord{}, fmt.Errorf("%w: %s", ErrNotFound, nodeID)
	}
	return rec, nil
}

// SnapshotAll copies all current records while holding every shard lock, so
// the rotation sequence evaluates against a single point-in-time view.
func (s *MemStore) SnapshotAll(ctx context.Context) map[string]model.ScoreRecord {
	for _, sh := range s.shards {
		sh.mu.RLock()
	}
	defer func() {
		for _, sh := range s.shards {
			sh.mu.RUnlock()
		}
	}()

	out := make(map[string]model.ScoreRecord)
	for _, sh := range s.shards {
		for id, rec := range sh.records {
			out[id] = rec
		}
	}
	return out
}

// Count returns the number of nodes with a stored record.
func (s *MemStore) Count(ctx context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.records)
		sh.mu.RUnlock()
	}
	return total
}
