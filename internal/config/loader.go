package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MESHGATE_CONFIG is set
//  3. env (prefix MESHGATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("MESHGATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: MESHGATE_THRESHOLD, MESHGATE_EPOCH_SECONDS, ...
	// Map env keys like MESHGATE_EPOCH_SECONDS -> epoch_seconds (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("MESHGATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "meshgate_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations that would put the controller in an
// unsafe or meaningless state.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, c.Threshold)
	case c.EpochSeconds <= 0:
		return fmt.Errorf("%w: epoch_seconds must be positive", ErrInvalidConfig)
	case c.MaxBenchmarkAgeSeconds <= 0:
		return fmt.Errorf("%w: max_benchmark_age_seconds must be positive", ErrInvalidConfig)
	case c.SecretLength <= 0:
		return fmt.Errorf("%w: secret_length must be positive", ErrInvalidConfig)
	case c.KeyLength <= 0:
		return fmt.Errorf("%w: key_length must be positive", ErrInvalidConfig)
	case len(c.Nodes) == 0:
		return fmt.Errorf("%w: nodes must not be empty", ErrInvalidConfig)
	}
	return nil
}
