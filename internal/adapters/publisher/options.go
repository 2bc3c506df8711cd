package publisher

import "github.com/rng-ops/meshgate/pkg/logger"

// publisherConfig collects tunables applied by options.
type publisherConfig struct {
	queueSize int
	log       logger.Logger
}

// Option applies a configuration option to the StatusFile publisher.
type Option func(*publisherConfig)

// WithQueueSize bounds the number of snapshots waiting to be written.
func WithQueueSize(size int) Option {
	return func(c *publisherConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the publisher.
func WithLogger(log logger.Logger) Option {
	return func(c *publisherConfig) {
		if log != nil {
			c.log = log
		}
	}
}
