// Package epoch owns the rotation state machine: it holds the current epoch
// secret, drives the rotation schedule, and orchestrates evaluation, key
// derivation, and snapshot publication.
//
// The live epoch is a single owned state object behind an atomic pointer.
// Rotations build the next state off to the side and commit it with one
// pointer swap, so concurrent readers always observe a fully pre-rotation or
// fully post-rotation view, never a mix.
package epoch

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rng-ops/meshgate/internal/adapters/repository"
	"github.com/rng-ops/meshgate/internal/domain/membership"
	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/internal/domain/psk"
	"github.com/rng-ops/meshgate/pkg/logger"
	"github.com/rng-ops/meshgate/pkg/metrics"
)

// defaultEpochDuration matches the original deployment default.
const defaultEpochDuration = 60 * time.Second

// Publisher receives each committed snapshot, at most once per rotation.
// Implementations must not block the rotation path; delivery is
// fire-and-forget and any retrying is the publisher's own concern.
type Publisher interface {
	Publish(ctx context.Context, snap *model.Snapshot)
}

// epochState is the owned state for one epoch. It is immutable after the
// pointer swap that commits it; the secret is read only during the rotation
// that creates it and the one that replaces it.
type epochState struct {
	id        uint64
	secret    []byte
	createdAt time.Time
	expiresAt time.Time
	keys      map[string]model.KeyMaterial
	snapshot  *model.Snapshot
}

// Manager drives the rotation schedule and exposes read-only accessors over
// the committed epoch state.
type Manager struct {
	store     repository.Store
	policy    membership.Policy
	deriver   *psk.Deriver
	publisher Publisher
	nodes     []string
	duration  time.Duration
	now       func() time.Time
	entropy   io.Reader

	rotateMu sync.Mutex // serializes scheduled and forced rotations
	state    atomic.Pointer[epochState]

	rearm chan struct{} // re-arms the schedule after a forced rotation

	log logger.Logger
}

// New constructs a Manager. The store, policy, and deriver are required.
func New(store repository.Store, policy membership.Policy, deriver *psk.Deriver, opts ...Option) (*Manager, error) {
	if store == nil || policy == nil || deriver == nil {
		return nil, ErrMissingDependency
	}

	m := &Manager{
		store:    store,
		policy:   policy,
		deriver:  deriver,
		duration: defaultEpochDuration,
		now:      time.Now,
		entropy:  rand.Reader,
		rearm:    make(chan struct{}, 1),
		log:      nil, // resolved in Start
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start commits the initial epoch synchronously and launches the rotation
// loop. The loop runs until ctx is cancelled; an in-flight rotation always
// completes its commit (or is abandoned whole) before shutdown is honored.
func (m *Manager) Start(ctx context.Context) error {
	if m.log == nil {
		m.log = logger.Get().Named("epoch")
	}

	// The first epoch is produced by the same sequence as every later one:
	// with an empty store it yields all-DENIED verdicts, per contract.
	if err := m.rotate(ctx, "startup"); err != nil {
		return err
	}

	go m.run(ctx)
	return nil
}

// run is the only long-lived task: a timer-driven loop that fires a rotation
// whenever the current epoch expires.
func (m *Manager) run(ctx context.Context) {
	timer := time.NewTimer(m.duration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := m.rotate(ctx, "scheduled"); err != nil {
				m.log.Error(ctx, "rotation abandoned; previous epoch remains in effect", logger.Error(err))
			}
			timer.Reset(m.duration)
		case <-m.rearm:
			// A forced rotation just committed; the next scheduled one is a
			// full epoch duration after it.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.duration)
		}
	}
}

// ForceRotate synchronously runs one rotation ahead of schedule and re-arms
// the timer. There is no de-bounce against back-to-back calls.
func (m *Manager) ForceRotate(ctx context.Context) error {
	if err := m.rotate(ctx, "forced"); err != nil {
		return err
	}
	select {
	case m.rearm <- struct{}{}:
	default:
	}
	return nil
}

// rotate executes the full rotation sequence. Either the entire new epoch
// (secret, verdicts, keys, snapshot) commits via one pointer swap, or the
// prior epoch remains fully in effect.
func (m *Manager) rotate(ctx context.Context, trigger string) error {
	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	start := m.now()

	prev := m.state.Load()
	nextID := uint64(1)
	if prev != nil {
		nextID = prev.id + 1
	}

	secret := make([]byte, m.deriver.SecretLength())
	if _, err := io.ReadFull(m.entropy, secret); err != nil {
		metrics.RecordRotationError()
		return fmt.Errorf("%w: generating secret: %v", ErrRotationFailed, err)
	}

	records := m.store.SnapshotAll(ctx)
	now := m.now()

	verdicts := m.policy.Evaluate(records, m.nodes, now)
	keys := make(map[string]model.KeyMaterial)
	allowed := 0
	for nodeID, v := range verdicts {
		v.EpochID = nextID
		verdicts[nodeID] = v
		if v.Allowed() {
			allowed++
			keys[nodeID] = model.KeyMaterial{
				NodeID:  nodeID,
				EpochID: nextID,
				Key:     m.deriver.Derive(secret, nodeID),
			}
		}
	}

	next := &epochState{
		id:        nextID,
		secret:    secret,
		createdAt: now,
		expiresAt: now.Add(m.duration),
		keys:      keys,
		snapshot: &model.Snapshot{
			EpochID:           nextID,
			CreatedAt:         now,
			ExpiresAt:         now.Add(m.duration),
			SecretFingerprint: psk.Fingerprint(secret),
			Verdicts:          verdicts,
		},
	}

	// Single commit point.
	m.state.Store(next)

	// The replaced secret must become unreachable; nothing reads it after
	// the swap, so it can be wiped in place.
	if prev != nil {
		for i := range prev.secret {
			prev.secret[i] = 0
		}
	}

	metrics.RecordRotation(float64(m.now().Sub(start).Milliseconds()))
	metrics.UpdateEpoch(nextID)
	metrics.UpdateVerdictCounts(allowed, len(verdicts)-allowed)

	if m.log != nil {
		m.log.Info(ctx, "epoch rotated",
			logger.Uint64("epoch_id", nextID),
			logger.String("trigger", trigger),
			logger.String("fingerprint", next.snapshot.SecretFingerprint),
			logger.Int("allowed", allowed),
			logger.Int("denied", len(verdicts)-allowed),
		)
	}

	if m.publisher != nil {
		m.publisher.Publish(ctx, next.snapshot)
	}

	return nil
}

// Snapshot returns the last committed snapshot, or nil before Start.
func (m *Manager) Snapshot() *model.Snapshot {
	st := m.state.Load()
	if st == nil {
		return nil
	}
	return st.snapshot
}

// EpochID returns the current epoch identifier (zero before Start).
func (m *Manager) EpochID() uint64 {
	st := m.state.Load()
	if st == nil {
		return 0
	}
	return st.id
}

// ExpiresAt returns when the current epoch expires.
func (m *Manager) ExpiresAt() time.Time {
	st := m.state.Load()
	if st == nil {
		return time.Time{}
	}
	return st.expiresAt
}

// Verdict returns the current verdict for a node, if it was evaluated.
func (m *Manager) Verdict(nodeID string) (model.Verdict, bool) {
	st := m.state.Load()
	if st == nil {
		return model.Verdict{}, false
	}
	v, ok := st.snapshot.Verdicts[nodeID]
	return v, ok
}

// KeyMaterial returns the node's key material for the current epoch.
// Absent for DENIED or unknown nodes; no key is ever fabricated.
func (m *Manager) KeyMaterial(nodeID string) (model.KeyMaterial, bool) {
	st := m.state.Load()
	if st == nil {
		return model.KeyMaterial{}, false
	}
	km, ok := st.keys[nodeID]
	return km, ok
}

// NodeView returns the node's verdict and key material read from one
// committed epoch. Unlike separate Verdict and KeyMaterial calls, a rotation
// committing mid-request cannot produce a mixed view. Returns false before
// the first epoch commits.
func (m *Manager) NodeView(nodeID string) (model.NodeView, bool) {
	st := m.state.Load()
	if st == nil {
		return model.NodeView{}, false
	}
	view := model.NodeView{EpochID: st.id}
	view.Verdict, view.HasVerdict = st.snapshot.Verdicts[nodeID]
	view.Key, view.HasKey = st.keys[nodeID]
	return view, true
}
