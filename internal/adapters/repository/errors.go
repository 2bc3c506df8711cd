package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrNotFound = errors.New("node not found")
)
