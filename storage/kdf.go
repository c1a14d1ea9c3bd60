package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for deriving the storage key from a passphrase.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4

	// KeyLen is the size of a storage encryption key.
	KeyLen = 32
	// SaltLen is the size of the passphrase salt.
	SaltLen = 16
)

// DeriveKey stretches passphrase into a storage encryption key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Parallelism, KeyLen)
}

// NewSalt returns SaltLen random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("storage: generate salt: %w", err)
	}
	return salt, nil
}

// LoadOrCreateSalt returns the salt stored under SaltKey, creating and
// persisting a new one when none exists. The salt is written to the raw
// adapter so it stays readable before any key is configured.
func LoadOrCreateSalt(ctx context.Context, adapter Adapter) ([]byte, error) {
	salt, err := adapter.Get(ctx, SaltKey)
	if err == nil {
		if len(salt) != SaltLen {
			return nil, fmt.Errorf("%w: salt has %d bytes", ErrCorruptRecord, len(salt))
		}
		return salt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	salt, err = NewSalt()
	if err != nil {
		return nil, err
	}
	if err := adapter.Set(ctx, SaltKey, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
