package network

import "fmt"

// RPCConfig holds the connection parameters for a node's JSON-RPC interface.
type RPCConfig struct {
	URL      string `json:"url" yaml:"url"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Network  string `json:"network" yaml:"network"`
	// MaxRequestsPerSecond paces calls to the node. Zero means unlimited.
	MaxRequestsPerSecond float64 `json:"maxRequestsPerSecond,omitempty" yaml:"max_requests_per_second,omitempty"`
}

// Preset describes a known network.
type Preset struct {
	// HRP is the bech32 address prefix.
	HRP string
	// CoinType is the BIP44 coin type used for key derivation.
	CoinType uint32
	// RPC holds default connection parameters. Empty for mainnet, which
	// must be configured explicitly.
	RPC RPCConfig
}

// NetworkPresets contains defaults for known networks.
var NetworkPresets = map[string]Preset{
	"mainnet": {HRP: "smr", CoinType: 4219},
	"testnet": {HRP: "rms", CoinType: 1, RPC: RPCConfig{URL: "http://localhost:14265", User: "wallet", Password: "wallet"}},
	"regtest": {HRP: "tst", CoinType: 1, RPC: RPCConfig{URL: "http://localhost:14265", User: "wallet", Password: "wallet"}},
}

// LookupPreset returns the preset for network.
func LookupPreset(network string) (Preset, error) {
	p, ok := NetworkPresets[network]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return p, nil
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. explicit settings (highest priority)
//  2. environment variables (WALLET_NODE_URL, WALLET_NODE_USER, WALLET_NODE_PASS)
//  3. network presets (lowest priority, testnet/regtest only)
//
// For mainnet, explicit configuration is required; there is no default URL.
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	// Layer 1: start with preset defaults if available.
	if preset, ok := NetworkPresets[network]; ok {
		result = preset.RPC
		result.Network = network
	}

	// Layer 2: environment variables override preset defaults.
	if v := env["WALLET_NODE_URL"]; v != "" {
		result.URL = v
	}
	if v := env["WALLET_NODE_USER"]; v != "" {
		result.User = v
	}
	if v := env["WALLET_NODE_PASS"]; v != "" {
		result.Password = v
	}

	// Layer 3: explicit settings win.
	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires an explicit node URL (set node_url or WALLET_NODE_URL)", network)
	}
	return &result, nil
}
