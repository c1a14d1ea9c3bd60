package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkPresets(t *testing.T) {
	tests := []struct {
		name     string
		network  string
		hrp      string
		coinType uint32
		url      string
	}{
		{"mainnet", "mainnet", "smr", 4219, ""},
		{"testnet", "testnet", "rms", 1, "http://localhost:14265"},
		{"regtest", "regtest", "tst", 1, "http://localhost:14265"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset, err := LookupPreset(tt.network)
			require.NoError(t, err)
			assert.Equal(t, tt.hrp, preset.HRP)
			assert.Equal(t, tt.coinType, preset.CoinType)
			assert.Equal(t, tt.url, preset.RPC.URL)
		})
	}
}

func TestLookupPresetUnknown(t *testing.T) {
	_, err := LookupPreset("devnet")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestResolveConfigExplicitOverridesAll(t *testing.T) {
	explicit := &RPCConfig{URL: "http://custom:9999", User: "me", Password: "secret"}
	env := map[string]string{"WALLET_NODE_URL": "http://env:1"}
	cfg, err := ResolveConfig(explicit, env, "regtest")
	require.NoError(t, err)
	assert.Equal(t, "http://custom:9999", cfg.URL)
	assert.Equal(t, "me", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "regtest", cfg.Network)
}

func TestResolveConfigEnvOverridesPreset(t *testing.T) {
	env := map[string]string{
		"WALLET_NODE_URL":  "http://env-node:14265",
		"WALLET_NODE_USER": "envuser",
	}
	cfg, err := ResolveConfig(nil, env, "testnet")
	require.NoError(t, err)
	assert.Equal(t, "http://env-node:14265", cfg.URL)
	assert.Equal(t, "envuser", cfg.User)
	assert.Equal(t, "wallet", cfg.Password) // falls through to preset
}

func TestResolveConfigPresetFallback(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "regtest")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:14265", cfg.URL)
	assert.Equal(t, "wallet", cfg.User)
}

func TestResolveConfigMainnetRequiresExplicit(t *testing.T) {
	_, err := ResolveConfig(nil, nil, "mainnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mainnet")

	cfg, err := ResolveConfig(&RPCConfig{URL: "https://node.example"}, nil, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "https://node.example", cfg.URL)
}
