// Package password hashes and verifies user passwords.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned by Hash for input past bcrypt's 72-byte limit.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher is a one-way salted password hash.
type Hasher interface {
	// Hash returns an encoded hash of plain, salt included.
	Hash(plain string) (string, error)
	// Verify reports whether plain matches an encoded hash produced by Hash.
	Verify(plain, hash string) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher validates cost against bcrypt's accepted range.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// Verify returns false for a mismatch and for a hash that cannot be parsed.
func (h *BcryptHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
