package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Backend names accepted by OpenAdapter.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Backends lists every supported backend name.
var Backends = []string{BackendMemory, BackendFile, BackendBolt, BackendBadger, BackendRedis, BackendSQLite}

// AdapterConfig selects and locates a backend.
type AdapterConfig struct {
	Backend     string
	Dir         string
	RedisAddr   string
	RedisPrefix string
	Logger      *slog.Logger
}

// OpenAdapter opens the backend named by cfg.Backend. Disk-backed adapters
// live in their own subdirectory of cfg.Dir.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (Adapter, error) {
	needsDir := cfg.Backend == BackendFile || cfg.Backend == BackendBolt
	if needsDir && cfg.Dir == "" {
		return nil, ErrInvalidBaseDir
	}
	sub := func(name string) string {
		if cfg.Dir == "" {
			return ""
		}
		return filepath.Join(cfg.Dir, name)
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryAdapter(), nil
	case BackendFile:
		return NewFileAdapter(sub("records"))
	case BackendBolt:
		return OpenBoltAdapter(filepath.Join(cfg.Dir, "wallet.db"))
	case BackendBadger:
		return OpenBadgerAdapter(sub("badger"), cfg.Logger)
	case BackendRedis:
		return DialRedisAdapter(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case BackendSQLite:
		return OpenSQLAdapter(sub("sqlite"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
