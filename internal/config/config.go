// Package config defines controller configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains process configuration, fixed for the process lifetime.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// Threshold is the minimum overall benchmark score for membership.
	Threshold float64 `koanf:"threshold"`

	// EpochSeconds sets the rotation interval.
	EpochSeconds int `koanf:"epoch_seconds"`

	// MaxBenchmarkAgeSeconds bounds how old a benchmark may be and still
	// count as valid evidence.
	MaxBenchmarkAgeSeconds int `koanf:"max_benchmark_age_seconds"`

	// SecretLength is the epoch secret length in bytes.
	SecretLength int `koanf:"secret_length"`

	// KeyLength is the derived per-node PSK length in bytes.
	KeyLength int `koanf:"key_length"`

	// Nodes is the known participant set evaluated each rotation.
	Nodes []string `koanf:"nodes"`

	// StatusFile is where the publisher writes the per-rotation snapshot.
	StatusFile string `koanf:"status_file"`

	// PublishQueueSize bounds snapshots waiting on the publisher.
	PublishQueueSize int `koanf:"publish_queue_size"`

	// ShardCount configures the number of shards in the score store.
	ShardCount int `koanf:"shard_count"`
}

// New creates a Config with deployment defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":8000",
		Threshold:              0.70,
		EpochSeconds:           60,
		MaxBenchmarkAgeSeconds: 120,
		SecretLength:           32,
		KeyLength:              32,
		Nodes:                  []string{"node-a", "node-b", "node-c"},
		StatusFile:             "artifacts/status.json",
		PublishQueueSize:       16,
		ShardCount:             8,
	}
}

// EpochDuration returns the rotation interval as a duration.
func (c *Config) EpochDuration() time.Duration {
	return time.Duration(c.EpochSeconds) * time.Second
}

// MaxBenchmarkAge returns the freshness bound as a duration.
func (c *Config) MaxBenchmarkAge() time.Duration {
	return time.Duration(c.MaxBenchmarkAgeSeconds) * time.Second
}
