// Package publisher persists committed epoch snapshots for external
// observers (node agents, operators). It is the snapshot consumer side of
// the rotation sequence: delivery is fire-and-forget and at most once per
// rotation, so a slow or failing writer can never delay a rotation.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/pkg/logger"
	"github.com/rng-ops/meshgate/pkg/metrics"
)

// defaultQueueSize bounds snapshots waiting to be written.
const defaultQueueSize = 16

// statusDocument is the on-disk shape, kept compatible with the node-side
// agents that poll it.
type statusDocument struct {
	Epoch struct {
		ID         uint64    `json:"id"`
		ExpiryUTC  time.Time `json:"expiry_utc"`
		SecretHash string    `json:"secret_hash"`
	} `json:"epoch"`
	Nodes         map[string]model.Verdict `json:"nodes"`
	LastUpdateUTC time.Time                `json:"last_update_utc"`
}

// StatusFile writes each snapshot to a JSON status file via a bounded queue
// and a single dispatch goroutine.
type StatusFile struct {
	path  string
	queue chan *model.Snapshot
	log   logger.Logger
}

// NewStatusFile creates a status-file publisher with configuration options.
func NewStatusFile(path string, opts ...Option) *StatusFile {
	p := &StatusFile{
		path: path,
	}
	cfg := publisherConfig{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	p.queue = make(chan *model.Snapshot, cfg.queueSize)
	p.log = cfg.log
	return p
}

// Start launches the dispatch loop. It runs until ctx is cancelled.
func (p *StatusFile) Start(ctx context.Context) {
	if p.log == nil {
		p.log = logger.Get().Named("publisher")
	}
	go p.run(ctx)
}

func (p *StatusFile) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.queue:
			start := time.Now()
			if err := p.write(snap); err != nil {
				metrics.RecordPublishError()
				p.log.Error(ctx, "status file write failed", logger.Error(err), logger.Uint64("epoch_id", snap.EpochID))
				continue
			}
			metrics.RecordSnapshotPublished(float64(time.Since(start).Milliseconds()))
			p.log.Debug(ctx, "status file written", logger.Uint64("epoch_id", snap.EpochID))
		}
	}
}

// Publish enqueues a snapshot without blocking. Under backpressure the
// snapshot is dropped; the next rotation supersedes it anyway.
func (p *StatusFile) Publish(ctx context.Context, snap *model.Snapshot) {
	select {
	case p.queue <- snap:
	default:
		metrics.RecordSnapshotDropped()
		if p.log != nil {
			p.log.Warn(ctx, "publish queue full; snapshot dropped", logger.Uint64("epoch_id", snap.EpochID))
		}
	}
}

// write renders the status document and replaces the file atomically.
func (p *StatusFile) write(snap *model.Snapshot) error {
	var doc statusDocument
	doc.Epoch.ID = snap.EpochID
	doc.Epoch.ExpiryUTC = snap.ExpiresAt
	doc.Epoch.SecretHash = snap.SecretFingerprint
	doc.Nodes = snap.Verdicts
	doc.LastUpdateUTC = time.Now().UTC()

	raw, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("creating temp status file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing status: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}
