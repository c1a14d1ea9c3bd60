package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrUnauthorized indicates the node refused the configured credentials.
	ErrUnauthorized = errors.New("network: unauthorized")

	// ErrNotFound indicates the node does not know the requested output or
	// transaction.
	ErrNotFound = errors.New("network: not found")

	// ErrBlockRejected indicates the node refused a submitted block.
	ErrBlockRejected = errors.New("network: block rejected")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrNetworkMismatch indicates the node serves a different network than
	// the wallet is configured for.
	ErrNetworkMismatch = errors.New("network: node serves a different network")

	// ErrUnknownNetwork indicates a network name with no preset.
	ErrUnknownNetwork = errors.New("network: unknown network")
)
