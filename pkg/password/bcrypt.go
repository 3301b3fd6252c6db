// Package password hashes and verifies account credentials.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Bcrypt implements Hasher with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher; a non-positive cost selects 10.
func NewBcrypt(cost int) *Bcrypt {
	if cost <= 0 {
		cost = 10
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches hash. An empty hash never matches.
func (b *Bcrypt) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
