package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeClock is a mutex guarded time source shared with the service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStartedService(t *testing.T, clk *fakeClock, opts ...Option) *Service {
	t.Helper()

	base := []Option{
		// A long interval keeps scheduled rotations out of the way; the
		// tests drive rotations explicitly.
		WithEpochDuration(time.Hour),
		WithStatusFile(""),
		WithClock(clk.Now),
	}
	svc := New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

// rejectSigned refuses any submission carrying a signature.
type rejectSigned struct{}

func (rejectSigned) Verify(rec model.ScoreRecord) error {
	if _, ok := rec.Attestation.(model.Signed); ok {
		return model.ErrAttestationRejected
	}
	return nil
}

func record(nodeID string, overall float64, at time.Time) model.ScoreRecord {
	return model.ScoreRecord{
		NodeID:       nodeID,
		SubmittedAt:  at,
		SuiteVersion: "2025.2",
		Scores:       map[string]float64{model.OverallKey: overall},
		Attestation:  model.Unsigned{},
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		svc := New(
			WithEpochDuration(time.Hour),
			WithStatusFile(""),
			WithClock(clk.Now),
		)

		Convey("When it starts", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the first epoch is committed before Start returns", func() {
				snap := svc.Epoch(context.Background())
				So(snap, ShouldNotBeNil)
				So(snap.EpochID, ShouldEqual, 1)
				So(snap.SecretFingerprint, ShouldStartWith, "sha256:")
			})

			Convey("And a second Start is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When the secret length is misconfigured", func() {
			bad := New(WithStatusFile(""), WithKeyLength(64))

			Convey("Then Start refuses to run", func() {
				So(bad.Start(context.Background()), ShouldNotBeNil)
			})
		})
	})
}

func TestSubmitThenRotate(t *testing.T) {
	Convey("Given a started service with the default participants", t, func() {
		clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		svc := newStartedService(t, clk)
		ctx := context.Background()

		Convey("When a passing benchmark arrives", func() {
			epochID, err := svc.SubmitBenchmark(ctx, record("node-a", 0.91, clk.Now()))
			So(err, ShouldBeNil)

			Convey("Then the receipt names the epoch the submission landed in", func() {
				So(epochID, ShouldEqual, 1)
			})

			Convey("And the verdict stays DENIED until the next rotation", func() {
				v, ok := svc.Verdict(ctx, "node-a")
				So(ok, ShouldBeTrue)
				So(v.Allowed(), ShouldBeFalse)

				_, err := svc.ForceRotate(ctx)
				So(err, ShouldBeNil)

				v, ok = svc.Verdict(ctx, "node-a")
				So(ok, ShouldBeTrue)
				So(v.Allowed(), ShouldBeTrue)
				So(v.EpochID, ShouldEqual, 2)

				km, ok := svc.KeyMaterial(ctx, "node-a")
				So(ok, ShouldBeTrue)
				So(km.Key, ShouldHaveLength, 32)
			})
		})

		Convey("When the verifier rejects the attestation", func() {
			strict := newStartedService(t, clk, WithVerifier(rejectSigned{}))
			sig := "deadbeef"
			rec := record("node-a", 0.91, clk.Now())
			rec.Attestation = model.Signed{Signature: sig}

			_, err := strict.SubmitBenchmark(ctx, rec)

			Convey("Then the submission never reaches the store", func() {
				So(err, ShouldWrap, model.ErrAttestationRejected)

				_, rotErr := strict.ForceRotate(ctx)
				So(rotErr, ShouldBeNil)
				v, ok := strict.Verdict(ctx, "node-a")
				So(ok, ShouldBeTrue)
				So(v.Allowed(), ShouldBeFalse)
				So(v.Reason, ShouldEqual, "no benchmark submitted")
			})
		})

		Convey("When a malformed benchmark arrives", func() {
			_, err := svc.SubmitBenchmark(ctx, record("node-a", 1.5, clk.Now()))

			Convey("Then the submission is rejected with a validation error", func() {
				So(err, ShouldWrap, model.ErrInvalidRecord)
			})
		})

		Convey("When a benchmark goes stale", func() {
			_, err := svc.SubmitBenchmark(ctx, record("node-b", 0.95, clk.Now()))
			So(err, ShouldBeNil)

			clk.Advance(125 * time.Second)
			_, err = svc.ForceRotate(ctx)
			So(err, ShouldBeNil)

			Convey("Then the node is denied for staleness", func() {
				v, ok := svc.Verdict(ctx, "node-b")
				So(ok, ShouldBeTrue)
				So(v.Allowed(), ShouldBeFalse)
				So(v.Reason, ShouldEqual, "benchmark stale")
			})
		})

		Convey("When rotations are forced twice", func() {
			_, err := svc.ForceRotate(ctx)
			So(err, ShouldBeNil)
			id, err := svc.ForceRotate(ctx)
			So(err, ShouldBeNil)

			Convey("Then the epoch id advances monotonically", func() {
				So(id, ShouldEqual, 3)
				So(svc.Epoch(ctx).EpochID, ShouldEqual, 3)
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a started service with submissions", t, func() {
		clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		svc := newStartedService(t, clk, WithThreshold(0.5))
		ctx := context.Background()

		_, err := svc.SubmitBenchmark(ctx, record("node-a", 0.8, clk.Now()))
		So(err, ShouldBeNil)
		_, err = svc.ForceRotate(ctx)
		So(err, ShouldBeNil)

		Convey("When stats are collected", func() {
			stats := svc.GetStats()

			Convey("Then they reflect the current epoch and verdict counts", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["threshold"], ShouldEqual, 0.5)
				So(stats["epochID"], ShouldEqual, uint64(2))
				So(stats["nodesAllowed"], ShouldEqual, 1)
				So(stats["nodesDenied"], ShouldEqual, 2)
				So(stats["submittedNodes"], ShouldEqual, 1)
			})
		})
	})
}

func TestServicePublishesStatus(t *testing.T) {
	Convey("Given a service configured with a status file", t, func() {
		clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		path := filepath.Join(t.TempDir(), "status.json")
		svc := newStartedService(t, clk, WithStatusFile(path))
		ctx := context.Background()

		Convey("When a rotation commits", func() {
			_, err := svc.ForceRotate(ctx)
			So(err, ShouldBeNil)

			Convey("Then the status file appears with the epoch summary", func() {
				var doc map[string]any
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					raw, err := os.ReadFile(path)
					if err == nil && json.Unmarshal(raw, &doc) == nil {
						if ep, ok := doc["epoch"].(map[string]any); ok && ep["id"] == float64(2) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
				}

				ep, ok := doc["epoch"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(ep["id"], ShouldEqual, float64(2))
				So(ep["secret_hash"], ShouldStartWith, "sha256:")
				So(doc, ShouldContainKey, "nodes")
			})
		})
	})
}
