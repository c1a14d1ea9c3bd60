// Package storage persists wallet records through pluggable key/value
// adapters and optionally encrypts them at rest.
package storage

import (
	"context"
	"sort"
	"sync"
)

// Adapter is a raw key/value backend. Values are opaque bytes; the Store
// layered on top decides what they contain.
type Adapter interface {
	// ID names the backend, e.g. "memory" or "bolt".
	ID() string

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// BatchSet stores all records. Backends with transactions apply the
	// batch atomically.
	BatchSet(ctx context.Context, records map[string][]byte) error

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the backend.
	Close() error
}

// MemoryAdapter keeps records in a map. Used for tests and ephemeral wallets.
type MemoryAdapter struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// Compile-time interface check.
var _ Adapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{records: make(map[string][]byte)}
}

func (m *MemoryAdapter) ID() string { return "memory" }

func (m *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryAdapter) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryAdapter) BatchSet(_ context.Context, records map[string][]byte) error {
	for k := range records {
		if k == "" {
			return ErrEmptyKey
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range records {
		m.records[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryAdapter) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryAdapter) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryAdapter) Close() error { return nil }
