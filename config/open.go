// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bitfsorg/libwallet-go/logging"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/storage"
)

// OpenStorage opens the configured backend and wraps it in an unencrypted
// store. Redis keys are namespaced by network.
func OpenStorage(ctx context.Context, cfg Config, logger *slog.Logger) (*storage.Store, error) {
	adapter, err := storage.OpenAdapter(ctx, storage.AdapterConfig{
		Backend:     cfg.StorageBackend,
		Dir:         cfg.DataDir,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: "wallet:" + cfg.Network + ":",
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("config: open %s storage: %w", cfg.StorageBackend, err)
	}
	store, err := storage.New(adapter, storage.WithLogger(logger))
	if err != nil {
		adapter.Close()
		return nil, err
	}
	return store, nil
}

// NodeRPC resolves the node connection: explicit settings first, then the
// WALLET_NODE_* environment, then the network preset.
func NodeRPC(cfg Config) (*network.RPCConfig, error) {
	explicit := &network.RPCConfig{URL: cfg.NodeURL, User: cfg.NodeUser, Password: cfg.NodePassword}
	env := map[string]string{
		"WALLET_NODE_URL":  os.Getenv("WALLET_NODE_URL"),
		"WALLET_NODE_USER": os.Getenv("WALLET_NODE_USER"),
		"WALLET_NODE_PASS": os.Getenv("WALLET_NODE_PASS"),
	}
	rpc, err := network.ResolveConfig(explicit, env, cfg.Network)
	if err != nil {
		return nil, err
	}
	rpc.MaxRequestsPerSecond = cfg.NodeRateLimit
	return rpc, nil
}

// Preset returns the address prefix and coin type of the configured network.
func Preset(cfg Config) (network.Preset, error) {
	return network.LookupPreset(cfg.Network)
}

// OpenLogger builds the process logger. With LogFile set, records are
// appended to that file and the returned closer closes it.
func OpenLogger(cfg Config) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return logging.New(cfg.LogLevel), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("config: create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open log file: %w", err)
	}
	return logging.NewWithWriter(f, cfg.LogLevel), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
