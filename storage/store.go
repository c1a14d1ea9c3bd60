package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/logging"
)

// envelopePrefix tags an encrypted record. No JSON document starts with it,
// so an untagged record is always legacy plaintext.
const envelopePrefix = "wenc1:"

// Store layers JSON encoding and optional at-rest encryption over an Adapter.
//
// Encrypted records have the form:
//
//	"wenc1:" || base64(nonce(24B) || XChaCha20-Poly1305(key, nonce, json, aad=recordKey))
//
// Binding the record key as associated data stops a ciphertext from being
// replayed under another key.
type Store struct {
	adapter Adapter
	logger  *slog.Logger

	mu  sync.RWMutex
	key []byte
}

// Option configures a Store.
type Option func(*Store) error

// WithEncryptionKey enables encryption with a 32-byte key.
func WithEncryptionKey(key []byte) Option {
	return func(s *Store) error {
		if len(key) != KeyLen {
			return ErrInvalidEncryptionKey
		}
		s.key = bytes.Clone(key)
		return nil
	}
}

// WithLogger sets the logger. Records are never logged, only keys.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logging.OrDiscard(l)
		return nil
	}
}

// New wraps adapter.
func New(adapter Adapter, opts ...Option) (*Store, error) {
	s := &Store{adapter: adapter, logger: logging.Discard()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errs.E(errs.KindStorage, "storage.New", err)
		}
	}
	return s, nil
}

// ID names the underlying adapter.
func (s *Store) ID() string { return s.adapter.ID() }

// Adapter returns the raw backend.
func (s *Store) Adapter() Adapter { return s.adapter }

// Encrypted reports whether an encryption key is configured.
func (s *Store) Encrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// SetEncryptionKey configures the key used by later reads and writes.
// Existing records are not touched; see Rekey.
func (s *Store) SetEncryptionKey(key []byte) error {
	if len(key) != KeyLen {
		return errs.E(errs.KindStorage, "storage.SetEncryptionKey", ErrInvalidEncryptionKey)
	}
	s.mu.Lock()
	s.key = bytes.Clone(key)
	s.mu.Unlock()
	return nil
}

// ClearEncryptionKey drops the key. Later writes are plaintext and reads of
// encrypted records fail with ErrEncryptionKeyRequired.
func (s *Store) ClearEncryptionKey() {
	s.mu.Lock()
	clear(s.key)
	s.key = nil
	s.mu.Unlock()
}

// Get decodes the record under key into v. A missing record is ErrNotFound.
func (s *Store) Get(ctx context.Context, key string, v any) error {
	const op = "storage.Get"
	s.mu.RLock()
	raw, err := s.adapter.Get(ctx, key)
	if err != nil {
		s.mu.RUnlock()
		return errs.E(errs.KindStorage, op, err)
	}
	plain, err := open(s.key, key, raw)
	s.mu.RUnlock()
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return errs.E(errs.KindStorage, op, fmt.Errorf("%w: %q: %w", ErrCorruptRecord, key, err))
	}
	return nil
}

// Set encodes v as JSON and stores it, encrypted when a key is configured.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	return s.BatchSet(ctx, map[string]any{key: v})
}

// BatchSet stores all records. Every record is encoded under the same key
// snapshot, and the key cannot change until the write lands, so one batch is
// never a mix of ciphertext and plaintext and never races a Rekey.
func (s *Store) BatchSet(ctx context.Context, records map[string]any) error {
	const op = "storage.BatchSet"
	encoded := make(map[string][]byte, len(records))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, v := range records {
		plain, err := json.Marshal(v)
		if err != nil {
			return errs.E(errs.KindStorage, op, fmt.Errorf("encode %q: %w", key, err))
		}
		sealed, err := seal(s.key, key, plain)
		if err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
		encoded[key] = sealed
	}

	if err := s.adapter.BatchSet(ctx, encoded); err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	s.logger.Debug("records written", "count", len(encoded), "adapter", s.adapter.ID())
	return nil
}

// Remove deletes key. Removing a missing record succeeds.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return errs.E(errs.KindStorage, "storage.Remove", s.adapter.Remove(ctx, key))
}

// Rekey re-encodes records under newKey, or as plaintext when newKey is nil,
// and then makes newKey the active key. A nil keys slice means every record
// except the salt. Records are read with the current key and written back
// in one batch. Reads and writes through the Store wait while a Rekey runs.
func (s *Store) Rekey(ctx context.Context, newKey []byte, keys []string) error {
	const op = "storage.Rekey"
	if newKey != nil && len(newKey) != KeyLen {
		return errs.E(errs.KindStorage, op, ErrInvalidEncryptionKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if keys == nil {
		all, err := s.adapter.Keys(ctx)
		if err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
		for _, k := range all {
			if k != SaltKey {
				keys = append(keys, k)
			}
		}
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		raw, err := s.adapter.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
		plain, err := open(s.key, key, raw)
		if err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
		if !json.Valid(plain) {
			return errs.E(errs.KindStorage, op, fmt.Errorf("%w: %q", ErrCorruptRecord, key))
		}
		sealed, err := seal(newKey, key, plain)
		if err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
		out[key] = sealed
	}

	if len(out) > 0 {
		if err := s.adapter.BatchSet(ctx, out); err != nil {
			return errs.E(errs.KindStorage, op, err)
		}
	}
	clear(s.key)
	s.key = bytes.Clone(newKey)
	s.logger.Info("storage rekeyed", "records", len(out), "encrypted", newKey != nil)
	return nil
}

// Close closes the adapter.
func (s *Store) Close() error {
	s.ClearEncryptionKey()
	return s.adapter.Close()
}

// IsEnvelope reports whether raw is an encrypted record.
func IsEnvelope(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte(envelopePrefix))
}

// seal returns plain unchanged when key is nil.
func seal(key []byte, recordKey string, plain []byte) ([]byte, error) {
	if key == nil {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncryptionKey, err)
	}
	buf := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("storage: generate nonce: %w", err)
	}
	buf = aead.Seal(buf, buf, plain, []byte(recordKey))

	out := make([]byte, len(envelopePrefix)+base64.StdEncoding.EncodedLen(len(buf)))
	copy(out, envelopePrefix)
	base64.StdEncoding.Encode(out[len(envelopePrefix):], buf)
	return out, nil
}

// open returns the JSON bytes of a stored record. Untagged records are
// legacy plaintext and returned as-is.
func open(key []byte, recordKey string, raw []byte) ([]byte, error) {
	if !IsEnvelope(raw) {
		return raw, nil
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %q", ErrEncryptionKeyRequired, recordKey)
	}
	body := raw[len(envelopePrefix):]
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(buf, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: bad envelope encoding", ErrCorruptRecord, recordKey)
	}
	buf = buf[:n]

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncryptionKey, err)
	}
	if len(buf) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: %q: envelope too short", ErrCorruptRecord, recordKey)
	}
	nonce, ct := buf[:aead.NonceSize()], buf[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(recordKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrDecryptionFailed, recordKey)
	}
	return plain, nil
}
