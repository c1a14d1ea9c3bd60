package storage

import "errors"

var (
	// ErrNotFound indicates no record exists for the given key.
	ErrNotFound = errors.New("storage: record not found")

	// ErrIOFailure indicates the backing adapter failed to read or write.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrLocked indicates another process holds the records directory.
	ErrLocked = errors.New("storage: directory locked by another process")

	// ErrEmptyKey indicates an attempt to use the empty string as a key.
	ErrEmptyKey = errors.New("storage: key must not be empty")

	// ErrInvalidEncryptionKey indicates the encryption key is not 32 bytes.
	ErrInvalidEncryptionKey = errors.New("storage: encryption key must be 32 bytes")

	// ErrEncryptionKeyRequired indicates an encrypted record was read while
	// no encryption key is configured.
	ErrEncryptionKeyRequired = errors.New("storage: record is encrypted but no encryption key is configured")

	// ErrDecryptionFailed indicates authenticated decryption failed: the
	// configured key is wrong or the ciphertext was tampered with.
	ErrDecryptionFailed = errors.New("storage: decryption failed (wrong key or tampered record)")

	// ErrCorruptRecord indicates a record is neither a well-formed envelope
	// nor valid JSON, or decrypted to something that is not valid JSON.
	ErrCorruptRecord = errors.New("storage: corrupt record")

	// ErrUnknownBackend indicates an unrecognised adapter name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)
