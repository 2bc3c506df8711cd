package psk

import "errors"

// Sentinel kinds for derivation configuration errors.
var (
	ErrBadLength = errors.New("invalid length")
)
