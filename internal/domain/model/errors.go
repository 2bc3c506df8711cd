package model

import "errors"

// Sentinel kinds for submission validation errors.
var (
	ErrInvalidRecord       = errors.New("invalid benchmark record")
	ErrAttestationRejected = errors.New("attestation rejected")
)
