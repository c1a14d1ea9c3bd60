package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerAdapter stores records in a badger database.
type BadgerAdapter struct {
	db *badger.DB
}

// Compile-time interface check.
var _ Adapter = (*BadgerAdapter)(nil)

// OpenBadgerAdapter opens a badger database in dataDir. An empty dataDir
// opens an in-memory database.
func OpenBadgerAdapter(dataDir string, logger *slog.Logger) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(dataDir).
		WithLogger(newBadgerLogger(logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	if dataDir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", ErrIOFailure, err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", ErrIOFailure, err)
	}
	return &BadgerAdapter{db: db}, nil
}

func (b *BadgerAdapter) ID() string { return "badger" }

func (b *BadgerAdapter) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BadgerAdapter) Set(ctx context.Context, key string, value []byte) error {
	return b.BatchSet(ctx, map[string][]byte{key: value})
}

// BatchSet writes all records in a single badger transaction.
func (b *BadgerAdapter) BatchSet(_ context.Context, records map[string][]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for key, value := range records {
			if key == "" {
				return ErrEmptyKey
			}
			if err := txn.Set([]byte(key), value); err != nil {
				return fmt.Errorf("%w: set %q: %w", ErrIOFailure, key, err)
			}
		}
		return nil
	})
}

func (b *BadgerAdapter) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("%w: delete %q: %w", ErrIOFailure, key, err)
		}
		return nil
	})
}

func (b *BadgerAdapter) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerAdapter) Close() error { return b.db.Close() }

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...), "component", "storage")
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...), "component", "storage")
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...), "component", "storage")
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...), "component", "storage")
}
