package epoch

import "errors"

// Sentinel kinds for rotation errors.
var (
	ErrMissingDependency = errors.New("missing manager dependency")
	ErrRotationFailed    = errors.New("rotation failed")
)
