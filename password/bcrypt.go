// Package password provides the engine's default one-way password hasher,
// backed by bcrypt with a configurable cost factor.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the bcrypt parameters.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies passwords. The zero value is not usable;
// construct with NewBcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt validates cfg and returns a hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cfg.Cost}, nil
}

// Hash derives a salted hash of plaintext at the configured cost.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A mismatch returns
// (false, nil); an error means the hash could not be evaluated.
func (b *Bcrypt) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
