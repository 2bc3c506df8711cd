// Package psk derives per-node pre-shared keys from the epoch secret.
//
// Derivation is a keyed hash (HMAC-SHA256) of the node id with the epoch
// secret as the key: deterministic across restarts for the same secret, and
// constant-time with respect to the secret content.
package psk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Default lengths in bytes.
const (
	DefaultSecretLength = 32
	DefaultKeyLength    = 32
)

// fingerprintHexChars bounds how much of the secret digest is exposed.
const fingerprintHexChars = 16

// Deriver maps (epoch secret, node id) to fixed-length key material.
type Deriver struct {
	secretLength int
	keyLength    int
}

// NewDeriver validates the configured lengths and returns a Deriver.
// Invalid lengths indicate a configuration bug and are rejected up front.
func NewDeriver(secretLength, keyLength int) (*Deriver, error) {
	if secretLength <= 0 {
		return nil, fmt.Errorf("%w: secret length %d", ErrBadLength, secretLength)
	}
	if keyLength <= 0 || keyLength > sha256.Size {
		return nil, fmt.Errorf("%w: key length %d (1..%d)", ErrBadLength, keyLength, sha256.Size)
	}
	return &Deriver{
		secretLength: secretLength,
		keyLength:    keyLength,
	}, nil
}

// SecretLength returns the expected epoch secret length in bytes.
func (d *Deriver) SecretLength() int { return d.secretLength }

// KeyLength returns the derived key length in bytes.
func (d *Deriver) KeyLength() int { return d.keyLength }

// Derive computes HMAC-SHA256(secret, nodeID) truncated to the key length.
// Same inputs always produce the same bytes. A secret of the wrong length or
// an empty node id is a precondition violation and panics: it cannot happen
// with a validated configuration and must not be silently recovered.
func (d *Deriver) Derive(secret []byte, nodeID string) []byte {
	if len(secret) != d.secretLength {
		panic(fmt.Sprintf("psk: secret length %d, expected %d", len(secret), d.secretLength))
	}
	if nodeID == "" {
		panic("psk: empty node id")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nodeID))
	return mac.Sum(nil)[:d.keyLength]
}

// Fingerprint returns a one-way fingerprint of the epoch secret suitable for
// logs and snapshots. It never reveals the secret itself.
func Fingerprint(secret []byte) string {
	sum := sha256.Sum256(secret)
	return "sha256:" + hex.EncodeToString(sum[:])[:fingerprintHexChars]
}
