// Package password implements one-way credential hashing and verification
// on top of bcrypt. Plaintext passwords are never stored, logged, or
// returned by any serialized representation.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// dummyDigest is a bcrypt hash of an unguessable throwaway value. Verify is
// run against it when the username does not exist, so a login attempt costs
// the same wall-clock time whether or not the account is real.
const dummyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hasher hashes and verifies credentials with a configurable work factor.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. A non-positive cost falls back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a salted one-way digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the stored digest.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy burns one bcrypt comparison against a fixed digest. It always
// returns false. Call it on the user-not-found path so response timing does
// not reveal whether a username exists.
func (h *Hasher) VerifyDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(plaintext))
	return false
}
