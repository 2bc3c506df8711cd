// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// OverallKey is the score entry every benchmark submission must carry.
const OverallKey = "overall"

// Attestation marks how a benchmark submission was authenticated.
// Verification belongs to a collaborator; swapping in a real verifier is a
// localized change and does not touch membership evaluation.
type Attestation interface {
	attestation()
}

// Unsigned is a submission that carried no signature.
type Unsigned struct{}

func (Unsigned) attestation() {}

// Signed carries the signature as submitted. It is accepted but not verified.
type Signed struct {
	Signature string
}

func (Signed) attestation() {}

// Verifier decides whether a submission's attestation is acceptable.
// Implementations should return an error wrapping ErrAttestationRejected.
type Verifier interface {
	Verify(rec ScoreRecord) error
}

// AcceptAll accepts every attestation without inspecting it.
type AcceptAll struct{}

// Verify always succeeds.
func (AcceptAll) Verify(ScoreRecord) error { return nil }

// ScoreRecord is the most recent benchmark submission for one node.
// Immutable once stored; a later submission for the same node replaces it
// wholesale, ordered by arrival.
type ScoreRecord struct {
	NodeID       string
	SubmittedAt  time.Time
	SuiteVersion string
	Scores       map[string]float64
	Notes        string
	Attestation  Attestation
}

// Validate checks the submission shape: node id, timestamp, an "overall"
// score, and all scores within [0, 1].
func (r ScoreRecord) Validate() error {
	if r.NodeID == "" {
		return fmt.Errorf("%w: missing node_id", ErrInvalidRecord)
	}
	if r.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	if _, ok := r.Scores[OverallKey]; !ok {
		return fmt.Errorf("%w: missing %q score", ErrInvalidRecord, OverallKey)
	}
	for name, v := range r.Scores {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: score %q out of range: %v", ErrInvalidRecord, name, v)
		}
	}
	return nil
}

// Overall returns the overall score, or zero when absent.
func (r ScoreRecord) Overall() float64 {
	return r.Scores[OverallKey]
}

// Status is a membership decision for one node in one epoch.
type Status string

// Membership statuses.
const (
	StatusAllowed Status = "ALLOWED"
	StatusDenied  Status = "DENIED"
)

// Verdict is the membership decision for one node, fully recomputed at every
// rotation. EpochID always equals the epoch the decision was evaluated in.
type Verdict struct {
	NodeID          string    `json:"node_id"`
	Status          Status    `json:"membership"`
	Reason          string    `json:"reason"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	EpochID         uint64    `json:"epoch_id"`
	BenchmarkAgeSec float64   `json:"last_benchmark_age_sec,omitempty"`
}

// Allowed reports whether the verdict grants membership.
func (v Verdict) Allowed() bool {
	return v.Status == StatusAllowed
}

// KeyMaterial is a per-node pre-shared key for one epoch. Issued only for
// ALLOWED nodes; re-deriving from the same secret is bit-for-bit identical.
type KeyMaterial struct {
	NodeID  string
	EpochID uint64
	Key     []byte
}

// NodeView bundles one node's verdict and key material as read from a single
// committed epoch. EpochID, the verdict, and the key always describe the same
// epoch; a key is never present without an ALLOWED verdict alongside it.
type NodeView struct {
	EpochID    uint64
	Verdict    Verdict
	HasVerdict bool
	Key        KeyMaterial
	HasKey     bool
}

// Snapshot is the immutable per-rotation output handed to the publisher.
// It carries a one-way fingerprint of the epoch secret, never the secret.
type Snapshot struct {
	EpochID           uint64             `json:"epoch_id"`
	CreatedAt         time.Time          `json:"created_utc"`
	ExpiresAt         time.Time          `json:"expiry_utc"`
	SecretFingerprint string             `json:"secret_hash"`
	Verdicts          map[string]Verdict `json:"nodes"`
}

// Verdict returns the verdict for a node, if it was evaluated in this epoch.
func (s *Snapshot) Verdict(nodeID string) (Verdict, bool) {
	v, ok := s.Verdicts[nodeID]
	return v, ok
}
