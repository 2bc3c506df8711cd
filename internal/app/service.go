// Package service provides the core controller service that wires the score
// store, membership policy, PSK deriver, epoch manager, and snapshot
// publisher, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rng-ops/meshgate/internal/adapters/publisher"
	"github.com/rng-ops/meshgate/internal/adapters/repository"
	"github.com/rng-ops/meshgate/internal/domain/membership"
	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/internal/domain/psk"
	"github.com/rng-ops/meshgate/internal/epoch"
	"github.com/rng-ops/meshgate/pkg/logger"
	"github.com/rng-ops/meshgate/pkg/metrics"
)

// Service implements the controller behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	policy   membership.Policy
	deriver  *psk.Deriver
	verifier model.Verifier
	pub      *publisher.StatusFile
	manager  *epoch.Manager

	// Configuration
	threshold        float64
	maxAge           time.Duration
	epochDuration    time.Duration
	secretLength     int
	keyLength        int
	nodes            []string
	statusFile       string
	publishQueueSize int
	shardCount       int
	now              func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		threshold:        0.70,
		maxAge:           120 * time.Second,
		epochDuration:    60 * time.Second,
		secretLength:     psk.DefaultSecretLength,
		keyLength:        psk.DefaultKeyLength,
		nodes:            []string{"node-a", "node-b", "node-c"},
		statusFile:       "artifacts/status.json",
		publishQueueSize: 16,
		shardCount:       8,
		verifier:         model.AcceptAll{},
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components, including the first
// epoch commit and the rotation loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting controller service...")

	deriver, err := psk.NewDeriver(s.secretLength, s.keyLength)
	if err != nil {
		// A bad length is a configuration bug; refuse to run with it.
		return fmt.Errorf("deriver configuration: %w", err)
	}
	s.deriver = deriver

	s.store = repository.NewMemStore(repository.WithShardCount(s.shardCount))
	if s.policy == nil {
		s.policy = membership.NewThresholdPolicy(s.threshold, s.maxAge)
	}

	// Components outlive this call; they stop when the service stops.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	managerOpts := []epoch.Option{
		epoch.WithEpochDuration(s.epochDuration),
		epoch.WithParticipants(s.nodes),
		epoch.WithClock(s.now),
		epoch.WithLogger(s.logger.Named("epoch")),
	}
	if s.statusFile != "" {
		s.pub = publisher.NewStatusFile(s.statusFile,
			publisher.WithQueueSize(s.publishQueueSize),
			publisher.WithLogger(s.logger.Named("publisher")),
		)
		s.pub.Start(runCtx)
		managerOpts = append(managerOpts, epoch.WithPublisher(s.pub))
	}

	manager, err := epoch.New(s.store, s.policy, s.deriver, managerOpts...)
	if err != nil {
		cancel()
		return err
	}
	if err := manager.Start(runCtx); err != nil {
		cancel()
		return err
	}
	s.manager = manager

	s.started = true
	s.logger.Info(ctx, "controller service started",
		logger.Float64("threshold", s.threshold),
		logger.Duration("epochDuration", s.epochDuration),
		logger.Duration("maxBenchmarkAge", s.maxAge),
		logger.Int("nodes", len(s.nodes)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping controller service...")

	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(context.Background(), "controller service stopped")
}

// SubmitBenchmark validates and stores a benchmark submission, returning the
// current epoch id as part of the receipt. The verdict does not change until
// the next rotation.
func (s *Service) SubmitBenchmark(ctx context.Context, rec model.ScoreRecord) (uint64, error) {
	if err := s.verifier.Verify(rec); err != nil {
		metrics.RecordSubmissionRejected()
		return 0, err
	}
	if err := s.store.Submit(ctx, rec); err != nil {
		metrics.RecordSubmissionRejected()
		return 0, err
	}
	metrics.RecordSubmissionReceived()

	s.logger.Info(ctx, "benchmark received",
		logger.String("node_id", rec.NodeID),
		logger.Float64("overall", rec.Overall()),
		logger.String("suite_version", rec.SuiteVersion),
	)
	return s.manager.EpochID(), nil
}

// Epoch returns the last committed snapshot.
func (s *Service) Epoch(ctx context.Context) *model.Snapshot {
	return s.manager.Snapshot()
}

// Verdict returns the current membership verdict for a node.
func (s *Service) Verdict(ctx context.Context, nodeID string) (model.Verdict, bool) {
	return s.manager.Verdict(nodeID)
}

// KeyMaterial returns the node's PSK for the current epoch; absent for
// DENIED or unknown nodes.
func (s *Service) KeyMaterial(ctx context.Context, nodeID string) (model.KeyMaterial, bool) {
	return s.manager.KeyMaterial(nodeID)
}

// NodeView returns the node's verdict and PSK read from one committed epoch,
// so a rotation cannot split a single config query across two epochs.
func (s *Service) NodeView(ctx context.Context, nodeID string) (model.NodeView, bool) {
	return s.manager.NodeView(nodeID)
}

// ForceRotate synchronously runs one rotation out of schedule and returns
// the new epoch id.
func (s *Service) ForceRotate(ctx context.Context) (uint64, error) {
	s.logger.Warn(ctx, "forced rotation triggered")
	if err := s.manager.ForceRotate(ctx); err != nil {
		return 0, err
	}
	return s.manager.EpochID(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"threshold":     s.threshold,
		"epochSeconds":  int(s.epochDuration / time.Second),
		"maxAgeSeconds": int(s.maxAge / time.Second),
		"knownNodes":    len(s.nodes),
	}

	if s.started {
		snap := s.manager.Snapshot()
		allowed := 0
		for _, v := range snap.Verdicts {
			if v.Allowed() {
				allowed++
			}
		}
		stats["epochID"] = snap.EpochID
		stats["epochExpiresUTC"] = snap.ExpiresAt
		stats["nodesAllowed"] = allowed
		stats["nodesDenied"] = len(snap.Verdicts) - allowed
		stats["submittedNodes"] = s.store.Count(context.Background())
	}

	return stats
}
