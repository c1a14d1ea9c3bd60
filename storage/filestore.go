package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileAdapter implements Adapter using the local filesystem.
// Records are stored at: {baseDir}/{shard}/{hex(key)}
// where shard is the first byte of SHA256(key) in hex, spreading keys that
// share a prefix (account-0, account-0-outputs, ...) across directories.
type FileAdapter struct {
	baseDir string
	mu      sync.RWMutex
	lock    *os.File
}

// lockFileName is held for the adapter's lifetime so a second process
// cannot write the same records.
const lockFileName = "LOCK"

// Compile-time interface check.
var _ Adapter = (*FileAdapter)(nil)

// NewFileAdapter creates a file-backed adapter rooted at baseDir.
// The directory is created if it does not exist. ErrLocked means another
// adapter holds the directory.
func NewFileAdapter(baseDir string) (*FileAdapter, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	lock, err := tryLock(filepath.Join(baseDir, lockFileName))
	if err != nil {
		return nil, err
	}

	return &FileAdapter{baseDir: baseDir, lock: lock}, nil
}

func (fs *FileAdapter) ID() string { return "file" }

// KeyToPath converts a record key to its filesystem path.
func KeyToPath(baseDir, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(baseDir, hex.EncodeToString(sum[:1]), hex.EncodeToString([]byte(key)))
}

// writeTemp writes value next to its final path and returns the temp name.
func (fs *FileAdapter) writeTemp(key string, value []byte) (string, error) {
	path := KeyToPath(fs.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return tmp, nil
}

// Get retrieves a record by key.
func (fs *FileAdapter) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(KeyToPath(fs.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return data, nil
}

// Set stores a record. The write goes to a temp file first and is renamed
// into place, so a crash never leaves a half-written record.
func (fs *FileAdapter) Set(ctx context.Context, key string, value []byte) error {
	return fs.BatchSet(ctx, map[string][]byte{key: value})
}

// BatchSet writes every record to a temp file before renaming any of them.
// A failure while writing leaves all previous values untouched.
func (fs *FileAdapter) BatchSet(_ context.Context, records map[string][]byte) error {
	for key := range records {
		if key == "" {
			return ErrEmptyKey
		}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	temps := make(map[string]string, len(records))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}
	for key, value := range records {
		tmp, err := fs.writeTemp(key, value)
		if err != nil {
			cleanup()
			return err
		}
		temps[key] = tmp
	}
	for key, tmp := range temps {
		if err := os.Rename(tmp, KeyToPath(fs.baseDir, key)); err != nil {
			cleanup()
			return fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
		delete(temps, key)
	}
	return nil
}

// Remove deletes a record. Missing records are not an error.
func (fs *FileAdapter) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(KeyToPath(fs.baseDir, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Keys returns all stored keys by scanning the shard directories.
func (fs *FileAdapter) Keys(_ context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var keys []string
	for _, entry := range entries {
		// Shard directories are 2-character hex strings
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			raw, err := hex.DecodeString(f.Name())
			if err != nil {
				continue // temp files and strays
			}
			keys = append(keys, string(raw))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the directory lock.
func (fs *FileAdapter) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	lock := fs.lock
	fs.lock = nil
	return releaseLock(lock)
}
