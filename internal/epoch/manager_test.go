package epoch_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rng-ops/meshgate/internal/adapters/repository"
	"github.com/rng-ops/meshgate/internal/domain/membership"
	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/internal/domain/psk"
	"github.com/rng-ops/meshgate/internal/epoch"
	"github.com/rng-ops/meshgate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

// fakeClock is a settable time source shared with the manager under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingPublisher records published snapshots.
type countingPublisher struct {
	mu    sync.Mutex
	snaps []*model.Snapshot
}

func (p *countingPublisher) Publish(_ context.Context, snap *model.Snapshot) {
	p.mu.Lock()
	p.snaps = append(p.snaps, snap)
	p.mu.Unlock()
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func record(nodeID string, overall float64, submittedAt time.Time) model.ScoreRecord {
	return model.ScoreRecord{
		NodeID:       nodeID,
		SubmittedAt:  submittedAt,
		SuiteVersion: "poc-0.1",
		Scores:       map[string]float64{"overall": overall},
		Attestation:  model.Unsigned{},
	}
}

type fixture struct {
	store   *repository.MemStore
	clock   *fakeClock
	pub     *countingPublisher
	manager *epoch.Manager
	cancel  context.CancelFunc
	ctx     context.Context
}

func newFixture(t *testing.T, nodes ...string) *fixture {
	t.Helper()

	store := repository.NewMemStore()
	policy := membership.NewThresholdPolicy(0.70, 120*time.Second)
	deriver, err := psk.NewDeriver(psk.DefaultSecretLength, psk.DefaultKeyLength)
	if err != nil {
		t.Fatalf("deriver: %v", err)
	}

	clock := newFakeClock(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	pub := &countingPublisher{}

	// A long epoch duration keeps the background loop out of the way;
	// rotations are driven explicitly through ForceRotate.
	mgr, err := epoch.New(store, policy, deriver,
		epoch.WithEpochDuration(time.Hour),
		epoch.WithParticipants(nodes),
		epoch.WithPublisher(pub),
		epoch.WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	return &fixture{store: store, clock: clock, pub: pub, manager: mgr, cancel: cancel, ctx: ctx}
}

func TestManagerInitialEpoch(t *testing.T) {
	Convey("Given a freshly started manager with no submissions", t, func() {
		f := newFixture(t, "node-a", "node-b", "node-c")

		Convey("Then the first epoch should be committed with all nodes denied", func() {
			So(f.manager.EpochID(), ShouldEqual, 1)

			snap := f.manager.Snapshot()
			So(snap, ShouldNotBeNil)
			So(snap.EpochID, ShouldEqual, 1)
			So(strings.HasPrefix(snap.SecretFingerprint, "sha256:"), ShouldBeTrue)
			So(len(snap.Verdicts), ShouldEqual, 3)

			for _, id := range []string{"node-a", "node-b", "node-c"} {
				v, ok := snap.Verdict(id)
				So(ok, ShouldBeTrue)
				So(v.Status, ShouldEqual, model.StatusDenied)
				So(v.Reason, ShouldEqual, membership.ReasonNoBenchmark)
				So(v.EpochID, ShouldEqual, 1)

				_, ok = f.manager.KeyMaterial(id)
				So(ok, ShouldBeFalse)
			}
		})

		Convey("And the snapshot should have been published exactly once", func() {
			So(f.pub.count(), ShouldEqual, 1)
		})
	})
}

func TestManagerScoreGating(t *testing.T) {
	Convey("Given submissions from a passing and a failing node", t, func() {
		f := newFixture(t, "node-a", "node-c")
		t0 := f.clock.Now()

		So(f.store.Submit(f.ctx, record("node-a", 0.91, t0)), ShouldBeNil)
		So(f.store.Submit(f.ctx, record("node-c", 0.40, t0)), ShouldBeNil)

		Convey("When rotating sixty seconds later", func() {
			f.clock.Advance(60 * time.Second)
			So(f.manager.ForceRotate(f.ctx), ShouldBeNil)

			Convey("Then only the passing node should be allowed and keyed", func() {
				a, _ := f.manager.Verdict("node-a")
				So(a.Status, ShouldEqual, model.StatusAllowed)

				c, _ := f.manager.Verdict("node-c")
				So(c.Status, ShouldEqual, model.StatusDenied)
				So(c.Reason, ShouldEqual, membership.ReasonBelowThreshold)

				km, ok := f.manager.KeyMaterial("node-a")
				So(ok, ShouldBeTrue)
				So(len(km.Key), ShouldEqual, psk.DefaultKeyLength)
				So(km.EpochID, ShouldEqual, f.manager.EpochID())

				_, ok = f.manager.KeyMaterial("node-c")
				So(ok, ShouldBeFalse)
			})

			Convey("And a node view should carry verdict and key from one epoch", func() {
				view, ok := f.manager.NodeView("node-a")
				So(ok, ShouldBeTrue)
				So(view.HasVerdict, ShouldBeTrue)
				So(view.HasKey, ShouldBeTrue)
				So(view.Verdict.EpochID, ShouldEqual, view.EpochID)
				So(view.Key.EpochID, ShouldEqual, view.EpochID)

				denied, ok := f.manager.NodeView("node-c")
				So(ok, ShouldBeTrue)
				So(denied.HasVerdict, ShouldBeTrue)
				So(denied.HasKey, ShouldBeFalse)
			})
		})
	})
}

func TestManagerFreshnessExpiry(t *testing.T) {
	Convey("Given a node that submits once and then goes quiet", t, func() {
		f := newFixture(t, "node-b")
		t0 := f.clock.Now()
		So(f.store.Submit(f.ctx, record("node-b", 0.95, t0)), ShouldBeNil)

		Convey("When rotating at sixty seconds", func() {
			f.clock.Advance(60 * time.Second)
			So(f.manager.ForceRotate(f.ctx), ShouldBeNil)

			v, _ := f.manager.Verdict("node-b")
			So(v.Status, ShouldEqual, model.StatusAllowed)

			Convey("And again once the benchmark has gone stale", func() {
				f.clock.Advance(125 * time.Second) // age is now 185s > 120s
				So(f.manager.ForceRotate(f.ctx), ShouldBeNil)

				v, _ := f.manager.Verdict("node-b")
				So(v.Status, ShouldEqual, model.StatusDenied)
				So(v.Reason, ShouldEqual, membership.ReasonStale)

				_, ok := f.manager.KeyMaterial("node-b")
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestManagerForcedRotation(t *testing.T) {
	Convey("Given a started manager", t, func() {
		f := newFixture(t, "node-a")
		firstFingerprint := f.manager.Snapshot().SecretFingerprint

		Convey("When forcing two rotations back to back", func() {
			So(f.manager.ForceRotate(f.ctx), ShouldBeNil)
			secondFingerprint := f.manager.Snapshot().SecretFingerprint
			So(f.manager.ForceRotate(f.ctx), ShouldBeNil)

			Convey("Then the epoch id should advance by exactly two", func() {
				So(f.manager.EpochID(), ShouldEqual, 3)
			})

			Convey("And each rotation should carry a fresh secret", func() {
				third := f.manager.Snapshot().SecretFingerprint
				So(secondFingerprint, ShouldNotEqual, firstFingerprint)
				So(third, ShouldNotEqual, secondFingerprint)
			})

			Convey("And each snapshot should have been published once", func() {
				So(f.pub.count(), ShouldEqual, 3)
			})
		})
	})
}

func TestManagerEpochMonotonicity(t *testing.T) {
	Convey("Given repeated rotations", t, func() {
		f := newFixture(t, "node-a")

		Convey("Then the epoch id should increase by exactly one each time", func() {
			for want := uint64(2); want <= 10; want++ {
				So(f.manager.ForceRotate(f.ctx), ShouldBeNil)
				So(f.manager.EpochID(), ShouldEqual, want)
			}
		})
	})
}

func TestManagerScheduledRotation(t *testing.T) {
	Convey("Given a manager on a short real-time schedule", t, func() {
		store := repository.NewMemStore()
		policy := membership.NewThresholdPolicy(0.70, 120*time.Second)
		deriver, err := psk.NewDeriver(psk.DefaultSecretLength, psk.DefaultKeyLength)
		So(err, ShouldBeNil)

		mgr, err := epoch.New(store, policy, deriver,
			epoch.WithEpochDuration(20*time.Millisecond),
			epoch.WithParticipants([]string{"node-a"}),
		)
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(mgr.Start(ctx), ShouldBeNil)

		Convey("Then the background loop should advance the epoch on its own", func() {
			deadline := time.Now().Add(2 * time.Second)
			for mgr.EpochID() < 3 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(mgr.EpochID(), ShouldBeGreaterThanOrEqualTo, 3)
		})
	})
}

func TestManagerSnapshotAtomicity(t *testing.T) {
	Convey("Given concurrent readers during continuous rotation", t, func() {
		f := newFixture(t, "node-a", "node-b")
		So(f.store.Submit(f.ctx, record("node-a", 0.91, f.clock.Now())), ShouldBeNil)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		violations := make(chan string, 64)

		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					snap := f.manager.Snapshot()
					for id, v := range snap.Verdicts {
						if v.EpochID != snap.EpochID {
							select {
							case violations <- fmt.Sprintf("node %s: verdict epoch %d in snapshot %d", id, v.EpochID, snap.EpochID):
							default:
							}
						}
					}

					// Per-node views must be single-epoch too: the verdict
					// and key in one view always describe the same epoch,
					// and a key only ever rides with an ALLOWED verdict.
					for _, id := range []string{"node-a", "node-b"} {
						view, ok := f.manager.NodeView(id)
						if !ok || !view.HasVerdict {
							continue
						}
						if view.Verdict.EpochID != view.EpochID {
							select {
							case violations <- fmt.Sprintf("node %s: view epoch %d with verdict epoch %d", id, view.EpochID, view.Verdict.EpochID):
							default:
							}
						}
						if view.HasKey && (view.Key.EpochID != view.EpochID || !view.Verdict.Allowed()) {
							select {
							case violations <- fmt.Sprintf("node %s: key epoch %d against verdict %s in epoch %d", id, view.Key.EpochID, view.Verdict.Status, view.EpochID):
							default:
							}
						}
					}
				}
			}()
		}

		for i := 0; i < 200; i++ {
			So(f.manager.ForceRotate(f.ctx), ShouldBeNil)
		}
		close(stop)
		wg.Wait()

		Convey("Then no reader should observe a mixed snapshot", func() {
			select {
			case v := <-violations:
				So(v, ShouldBeEmpty) // fails with the violation message
			default:
			}
		})
	})
}

func TestManagerSecretNonLeakage(t *testing.T) {
	Convey("Given a committed snapshot", t, func() {
		f := newFixture(t, "node-a")
		snap := f.manager.Snapshot()

		Convey("When serializing it", func() {
			raw, err := json.Marshal(snap)
			So(err, ShouldBeNil)
			payload := string(raw)

			Convey("Then only the fingerprint should appear", func() {
				So(payload, ShouldContainSubstring, "secret_hash")
				So(payload, ShouldContainSubstring, "sha256:")
				// Fingerprint exposes 16 hex chars of a 64-char digest.
				fp := strings.TrimPrefix(snap.SecretFingerprint, "sha256:")
				So(len(fp), ShouldEqual, 16)
			})
		})
	})
}

// flakyEntropy serves crypto/rand until told to fail.
type flakyEntropy struct {
	mu   sync.Mutex
	fail bool
}

func (e *flakyEntropy) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return 0, errors.New("entropy exhausted")
	}
	return rand.Read(p)
}

func (e *flakyEntropy) setFail(fail bool) {
	e.mu.Lock()
	e.fail = fail
	e.mu.Unlock()
}

func TestManagerRotationFailure(t *testing.T) {
	Convey("Given a manager whose entropy source starts failing", t, func() {
		store := repository.NewMemStore()
		policy := membership.NewThresholdPolicy(0.70, 120*time.Second)
		deriver, err := psk.NewDeriver(psk.DefaultSecretLength, psk.DefaultKeyLength)
		So(err, ShouldBeNil)

		entropy := &flakyEntropy{}
		clock := newFakeClock(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
		mgr, err := epoch.New(store, policy, deriver,
			epoch.WithEpochDuration(time.Hour),
			epoch.WithParticipants([]string{"node-a"}),
			epoch.WithClock(clock.Now),
			epoch.WithEntropy(entropy),
		)
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(mgr.Start(ctx), ShouldBeNil)

		So(store.Submit(ctx, record("node-a", 0.91, clock.Now())), ShouldBeNil)
		So(mgr.ForceRotate(ctx), ShouldBeNil)
		So(mgr.EpochID(), ShouldEqual, 2)
		fingerprint := mgr.Snapshot().SecretFingerprint

		Convey("When the next rotation cannot draw a secret", func() {
			entropy.setFail(true)
			err := mgr.ForceRotate(ctx)

			Convey("Then the rotation fails with a rotation error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, epoch.ErrRotationFailed), ShouldBeTrue)
			})

			Convey("And the prior epoch remains fully serveable", func() {
				So(mgr.EpochID(), ShouldEqual, 2)
				So(mgr.Snapshot().SecretFingerprint, ShouldEqual, fingerprint)

				v, ok := mgr.Verdict("node-a")
				So(ok, ShouldBeTrue)
				So(v.Status, ShouldEqual, model.StatusAllowed)
				So(v.EpochID, ShouldEqual, 2)

				km, ok := mgr.KeyMaterial("node-a")
				So(ok, ShouldBeTrue)
				So(km.EpochID, ShouldEqual, 2)
			})

			Convey("And rotation resumes once entropy recovers", func() {
				entropy.setFail(false)
				So(mgr.ForceRotate(ctx), ShouldBeNil)
				So(mgr.EpochID(), ShouldEqual, 3)
			})
		})
	})
}

func TestManagerMissingDependencies(t *testing.T) {
	Convey("Given incomplete dependencies", t, func() {
		deriver, err := psk.NewDeriver(psk.DefaultSecretLength, psk.DefaultKeyLength)
		So(err, ShouldBeNil)

		_, err = epoch.New(nil, membership.NewThresholdPolicy(0.70, time.Minute), deriver)
		So(err, ShouldEqual, epoch.ErrMissingDependency)

		_, err = epoch.New(repository.NewMemStore(), nil, deriver)
		So(err, ShouldEqual, epoch.ErrMissingDependency)

		_, err = epoch.New(repository.NewMemStore(), membership.NewThresholdPolicy(0.70, time.Minute), nil)
		So(err, ShouldEqual, epoch.ErrMissingDependency)
	})
}
