package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// BoltAdapter stores records in a single bbolt bucket.
type BoltAdapter struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Adapter = (*BoltAdapter)(nil)

// OpenBoltAdapter opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltAdapter(dbPath string) (*BoltAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrIOFailure, err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrIOFailure, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create bucket: %w", ErrIOFailure, err)
	}

	return &BoltAdapter{db: db}, nil
}

func (s *BoltAdapter) ID() string { return "bolt" }

func (s *BoltAdapter) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// bbolt memory is only valid inside the transaction.
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltAdapter) Set(ctx context.Context, key string, value []byte) error {
	return s.BatchSet(ctx, map[string][]byte{key: value})
}

// BatchSet writes all records in one bbolt transaction.
func (s *BoltAdapter) BatchSet(_ context.Context, records map[string][]byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for key, value := range records {
			if key == "" {
				return ErrEmptyKey
			}
			if err := b.Put([]byte(key), value); err != nil {
				return fmt.Errorf("%w: put %q: %w", ErrIOFailure, key, err)
			}
		}
		return nil
	})
	return err
}

func (s *BoltAdapter) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Delete([]byte(key)); err != nil {
			return fmt.Errorf("%w: delete %q: %w", ErrIOFailure, key, err)
		}
		return nil
	})
}

// Keys walks the bucket cursor; bbolt keeps keys sorted.
func (s *BoltAdapter) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Close closes the underlying database.
func (s *BoltAdapter) Close() error { return s.db.Close() }
