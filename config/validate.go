// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/storage"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if _, ok := network.NetworkPresets[cfg.Network]; !ok {
		return ErrInvalidNetwork
	}

	if !slices.Contains(storage.Backends, cfg.StorageBackend) {
		return fmt.Errorf("%w: %q", ErrInvalidStorage, cfg.StorageBackend)
	}

	if cfg.StorageBackend == storage.BackendRedis {
		if err := validateAddr(cfg.RedisAddr); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRedisAddr, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	for name, negative := range map[string]bool{
		"node_rate_limit":         cfg.NodeRateLimit < 0,
		"pow_workers":             cfg.PoWWorkers < 0,
		"poll_interval":           cfg.PollInterval < 0,
		"inclusion_timeout":       cfg.InclusionTimeout < 0,
		"cache_ttl":               cfg.CacheTTL < 0,
		"consolidation_threshold": cfg.ConsolidationThreshold < 0,
	} {
		if negative {
			return fmt.Errorf("%w: %s", ErrNegativeValue, name)
		}
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
