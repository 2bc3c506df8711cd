// Package emitter periodically generates benchmark scores and submits them to
// the controller, standing in for a node's real benchmark harness.
package emitter

import "time"

// Config holds configuration for one emitter instance.
type Config struct {
	BaseURL   string        // Base URL of the controller
	NodeID    string        // Node submitting the benchmarks
	ScoreMean float64       // Center of the generated overall score
	Interval  time.Duration // Delay between submissions
	Count     int           // Number of submissions; 0 runs until cancelled
	Timeout   time.Duration // HTTP request timeout
	Verbose   bool          // Log every submission body
}

// Benchmark is one generated submission payload.
type Benchmark struct {
	NodeID       string             `json:"node_id"`
	Timestamp    string             `json:"timestamp"`
	SuiteVersion string             `json:"suite_version"`
	Scores       map[string]float64 `json:"scores"`
	Notes        string             `json:"notes,omitempty"`
	Signature    *string            `json:"signature,omitempty"`
}

// Receipt is the controller's response to a submission.
type Receipt struct {
	Status       string `json:"status"`
	NodeID       string `json:"node_id"`
	SubmissionID string `json:"submission_id"`
	EpochID      uint64 `json:"epoch_id"`
}

// Stats holds emitter run statistics.
type Stats struct {
	Generated  int
	Successful int
	Failed     int
	StartTime  time.Time
	EndTime    time.Time
}
