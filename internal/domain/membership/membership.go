// Package membership evaluates node eligibility from benchmark submissions.
//
// Evaluation is pure: given the same records, node set, and clock reading it
// always produces the same verdicts, which keeps it directly unit-testable.
package membership

import (
	"time"

	"github.com/rng-ops/meshgate/internal/domain/model"
)

// Verdict reasons. Exactly one is attached to every decision.
const (
	ReasonNoBenchmark    = "no benchmark submitted"
	ReasonStale          = "benchmark stale"
	ReasonBelowThreshold = "score below threshold"
	ReasonSatisfied      = "score and freshness satisfied"
)

// Policy decides membership for a set of nodes. Implementations must be pure
// so alternative strategies (trend-aware, quorum-based) can be substituted
// without touching the rotation sequence.
type Policy interface {
	// Evaluate produces one verdict per node in known. Nodes are evaluated
	// independently; records for unknown nodes are ignored. EpochID on the
	// returned verdicts is left zero for the caller to stamp.
	Evaluate(records map[string]model.ScoreRecord, known []string, now time.Time) map[string]model.Verdict
}

// ThresholdPolicy grants membership to nodes whose latest benchmark is fresh
// and whose overall score meets a fixed threshold.
type ThresholdPolicy struct {
	threshold float64
	maxAge    time.Duration
}

// NewThresholdPolicy creates a policy with a deployment-wide threshold and
// maximum benchmark age.
func NewThresholdPolicy(threshold float64, maxAge time.Duration) *ThresholdPolicy {
	return &ThresholdPolicy{
		threshold: threshold,
		maxAge:    maxAge,
	}
}

// Evaluate applies the threshold and freshness rules to every known node.
func (p *ThresholdPolicy) Evaluate(records map[string]model.ScoreRecord, known []string, now time.Time) map[string]model.Verdict {
	verdicts := make(map[string]model.Verdict, len(known))
	for _, nodeID := range known {
		verdicts[nodeID] = p.evaluateOne(records, nodeID, now)
	}
	return verdicts
}

func (p *ThresholdPolicy) evaluateOne(records map[string]model.ScoreRecord, nodeID string, now time.Time) model.Verdict {
	verdict := model.Verdict{
		NodeID:      nodeID,
		Status:      model.StatusDenied,
		EvaluatedAt: now,
	}

	rec, ok := records[nodeID]
	if !ok || rec.Validate() != nil {
		// A malformed stored record is treated the same as an absent one
		// rather than aborting evaluation of the other nodes.
		verdict.Reason = ReasonNoBenchmark
		return verdict
	}

	age := now.Sub(rec.SubmittedAt)
	verdict.BenchmarkAgeSec = age.Seconds()

	// A negative age (future-dated submission from clock skew) counts as fresh.
	if age > p.maxAge {
		verdict.Reason = ReasonStale
		return verdict
	}

	if rec.Overall() < p.threshold {
		verdict.Reason = ReasonBelowThreshold
		return verdict
	}

	verdict.Status = model.StatusAllowed
	verdict.Reason = ReasonSatisfied
	return verdict
}
