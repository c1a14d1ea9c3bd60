package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// sqlRecord is the single table backing SQLAdapter.
type sqlRecord struct {
	RecordKey string `gorm:"column:record_key;primaryKey"`
	Value     []byte `gorm:"column:value"`
}

func (sqlRecord) TableName() string { return "wallet_records" }

// SQLAdapter stores records in a SQLite database through gorm.
type SQLAdapter struct {
	db *gorm.DB
}

// Compile-time interface check.
var _ Adapter = (*SQLAdapter)(nil)

// OpenSQLAdapter opens {dataDir}/wallet.sqlite. An empty dataDir opens a
// private in-memory database.
func OpenSQLAdapter(dataDir string) (*SQLAdapter, error) {
	var dsn string
	if dataDir == "" {
		// Named so that connections in the pool share it, unique so that
		// separate adapters do not.
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	} else {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrIOFailure, err)
		}
		dsn = filepath.Join(dataDir, "wallet.sqlite") + "?_pragma=journal_mode(WAL)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrIOFailure, err)
	}
	if err := db.AutoMigrate(&sqlRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrIOFailure, err)
	}
	return &SQLAdapter{db: db}, nil
}

func (s *SQLAdapter) ID() string { return "sqlite" }

func (s *SQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var rec sqlRecord
	err := s.db.WithContext(ctx).Where("record_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return rec.Value, nil
}

func (s *SQLAdapter) Set(ctx context.Context, key string, value []byte) error {
	return s.BatchSet(ctx, map[string][]byte{key: value})
}

// BatchSet upserts every record inside one SQL transaction.
func (s *SQLAdapter) BatchSet(ctx context.Context, records map[string][]byte) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range records {
			if key == "" {
				return ErrEmptyKey
			}
			rec := sqlRecord{RecordKey: key, Value: value}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "record_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&rec)
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmptyKey) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func (s *SQLAdapter) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&sqlRecord{}).Error; err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func (s *SQLAdapter) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&sqlRecord{}).Order("record_key").Pluck("record_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return keys, nil
}

func (s *SQLAdapter) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
