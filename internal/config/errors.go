package config

import (
	"errors"
)

// Sentinel kinds for controller configuration errors, matchable with
// errors.Is. Validation failures use ErrInvalidConfig; file and env layering
// failures use ErrLoadConfig.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
