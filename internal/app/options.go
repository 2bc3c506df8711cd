package service

import (
	"time"

	"github.com/rng-ops/meshgate/internal/domain/membership"
	"github.com/rng-ops/meshgate/internal/domain/model"
	"github.com/rng-ops/meshgate/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithThreshold sets the minimum overall score for membership.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithMaxBenchmarkAge sets the freshness bound for submissions.
func WithMaxBenchmarkAge(maxAge time.Duration) Option {
	return func(s *Service) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithEpochDuration sets the rotation interval.
func WithEpochDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.epochDuration = d
		}
	}
}

// WithSecretLength sets the epoch secret length in bytes.
func WithSecretLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.secretLength = n
		}
	}
}

// WithKeyLength sets the derived PSK length in bytes.
func WithKeyLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.keyLength = n
		}
	}
}

// WithNodes sets the known participant set.
func WithNodes(nodes []string) Option {
	return func(s *Service) {
		if len(nodes) > 0 {
			s.nodes = append([]string(nil), nodes...)
		}
	}
}

// WithStatusFile sets the publisher's status file path. An empty path
// disables the publisher.
func WithStatusFile(path string) Option {
	return func(s *Service) {
		s.statusFile = path
	}
}

// WithPublishQueueSize bounds snapshots waiting on the publisher.
func WithPublishQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.publishQueueSize = size
		}
	}
}

// WithShardCount configures the score store's shard count.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithVerifier substitutes an attestation verifier. The default accepts
// every submission without inspecting its attestation.
func WithVerifier(v model.Verifier) Option {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithPolicy substitutes an alternative membership policy.
func WithPolicy(p membership.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
