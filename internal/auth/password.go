// Package auth holds the identity primitives: password hashing, token
// issuing, admin elevation and the middleware that gates routes on them.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used outside tests.
// Each +1 doubles hashing time; 12 lands around 250ms on current hardware.
const DefaultCost = 12

// maxPasswordBytes is bcrypt's input limit. Longer input is silently
// truncated by the algorithm, so it is rejected up front instead.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")

// CredentialStore hashes and verifies passwords. It holds no state besides
// the work factor, so a single value is shared by every request.
type CredentialStore struct {
	cost int
}

// NewCredentialStore returns a store with the given bcrypt cost.
func NewCredentialStore(cost int) (*CredentialStore, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &CredentialStore{cost: cost}, nil
}

// NewCredentialStoreForTest skips the bounds check. Use cost 4 (bcrypt's
// minimum) so test suites stay fast.
func NewCredentialStoreForTest(cost int) *CredentialStore {
	return &CredentialStore{cost: cost}
}

// Hash returns a salted bcrypt digest of plaintext.
func (c *CredentialStore) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches digest. The comparison inside
// bcrypt is constant-time; a malformed digest simply fails to match.
func (c *CredentialStore) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
