package epoch

import (
	"io"
	"time"

	"github.com/rng-ops/meshgate/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithEpochDuration sets the rotation interval.
func WithEpochDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.duration = d
		}
	}
}

// WithParticipants sets the known node set evaluated each rotation.
func WithParticipants(nodes []string) Option {
	return func(m *Manager) {
		m.nodes = append([]string(nil), nodes...)
	}
}

// WithPublisher sets the snapshot publisher collaborator.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithEntropy overrides the secret entropy source. Used by tests to exercise
// rotation failure handling.
func WithEntropy(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.entropy = r
		}
	}
}

// WithClock overrides the time source. Used by tests to drive freshness.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}
