// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bitfsorg/libwallet-go/storage"
)

// EnvPrefix prefixes every environment override, e.g. WALLET_NETWORK.
const EnvPrefix = "WALLET"

// Config holds the settings of a wallet process.
type Config struct {
	DataDir        string `yaml:"datadir" envconfig:"DATA_DIR"`
	Network        string `yaml:"network" envconfig:"NETWORK"`
	StorageBackend string `yaml:"storage" envconfig:"STORAGE"`
	RedisAddr      string `yaml:"redis,omitempty" envconfig:"REDIS_ADDR"`
	LogLevel       string `yaml:"loglevel" envconfig:"LOG_LEVEL"`
	LogFile        string `yaml:"logfile,omitempty" envconfig:"LOG_FILE"`

	NodeURL      string `yaml:"node_url,omitempty" envconfig:"NODE_URL"`
	NodeUser     string `yaml:"node_user,omitempty" envconfig:"NODE_USER"`
	NodePassword string `yaml:"node_password,omitempty" envconfig:"NODE_PASS"`
	// NodeRateLimit caps requests per second to the node; zero is unlimited.
	NodeRateLimit float64 `yaml:"node_rate_limit,omitempty" envconfig:"NODE_RATE_LIMIT"`

	LocalPoW               bool          `yaml:"local_pow" envconfig:"LOCAL_POW"`
	PoWWorkers             int           `yaml:"pow_workers" envconfig:"POW_WORKERS"`
	PollInterval           time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	InclusionTimeout       time.Duration `yaml:"inclusion_timeout" envconfig:"INCLUSION_TIMEOUT"`
	CacheTTL               time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	ConsolidationThreshold int           `yaml:"consolidation_threshold" envconfig:"CONSOLIDATION_THRESHOLD"`
}

// DefaultConfig returns a testnet configuration backed by bbolt.
func DefaultConfig() Config {
	return Config{
		DataDir:                DefaultDataDir(),
		Network:                "testnet",
		StorageBackend:         storage.BackendBolt,
		LogLevel:               "info",
		PollInterval:           2 * time.Second,
		InclusionTimeout:       2 * time.Minute,
		CacheTTL:               5 * time.Minute,
		ConsolidationThreshold: 100,
	}
}

// DefaultDataDir returns ~/.libwallet, or .libwallet in the working
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libwallet"
	}
	return filepath.Join(home, ".libwallet")
}

// ConfigPath returns the path of the config file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads the file at path over DefaultConfig. Files ending in
// .yaml or .yml are YAML; anything else uses "key = value" lines with #
// comments. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
		}
		return cfg, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return Config{}, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on its first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return strings.ToLower(key), strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "storage":
		c.StorageBackend = value
	case "redis":
		c.RedisAddr = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "node_url":
		c.NodeURL = value
	case "node_user":
		c.NodeUser = value
	case "node_password":
		c.NodePassword = value
	case "node_rate_limit":
		c.NodeRateLimit, err = strconv.ParseFloat(value, 64)
	case "local_pow":
		c.LocalPoW, err = strconv.ParseBool(value)
	case "pow_workers":
		c.PoWWorkers, err = strconv.Atoi(value)
	case "poll_interval":
		c.PollInterval, err = time.ParseDuration(value)
	case "inclusion_timeout":
		c.InclusionTimeout, err = time.ParseDuration(value)
	case "cache_ttl":
		c.CacheTTL, err = time.ParseDuration(value)
	case "consolidation_threshold":
		c.ConsolidationThreshold, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories. The format
// follows the file extension as in LoadConfig. The file is private to the
// user because it may hold node credentials.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var data []byte
	if isYAML(path) {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("config: encode: %w", err)
		}
		data = out
	} else {
		var b strings.Builder
		b.WriteString("# Wallet Configuration\n\n")
		for _, kv := range [][2]string{
			{"datadir", cfg.DataDir},
			{"network", cfg.Network},
			{"storage", cfg.StorageBackend},
			{"redis", cfg.RedisAddr},
			{"loglevel", cfg.LogLevel},
			{"logfile", cfg.LogFile},
			{"node_url", cfg.NodeURL},
			{"node_user", cfg.NodeUser},
			{"node_password", cfg.NodePassword},
			{"node_rate_limit", strconv.FormatFloat(cfg.NodeRateLimit, 'g', -1, 64)},
			{"local_pow", strconv.FormatBool(cfg.LocalPoW)},
			{"pow_workers", strconv.Itoa(cfg.PoWWorkers)},
			{"poll_interval", cfg.PollInterval.String()},
			{"inclusion_timeout", cfg.InclusionTimeout.String()},
			{"cache_ttl", cfg.CacheTTL.String()},
			{"consolidation_threshold", strconv.Itoa(cfg.ConsolidationThreshold)},
		} {
			fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
		}
		data = []byte(b.String())
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with WALLET_* environment variables. Unset
// variables leave the field unchanged.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
