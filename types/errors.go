package types

import "errors"

var (
	// ErrDecode indicates an identifier string is not canonical prefixed hex
	// of the expected length.
	ErrDecode = errors.New("types: decode error")

	// ErrInvalidLength indicates raw identifier bytes have the wrong length.
	ErrInvalidLength = errors.New("types: invalid identifier length")

	// ErrInvalidAddress indicates a bech32 address could not be decoded.
	ErrInvalidAddress = errors.New("types: invalid address")

	// ErrNetworkMismatch indicates an address belongs to another network.
	ErrNetworkMismatch = errors.New("types: address network prefix mismatch")

	// ErrInvalidOutput indicates an output is missing required fields.
	ErrInvalidOutput = errors.New("types: invalid output")

	// ErrInvalidAmount indicates an amount is negative or exceeds the token supply.
	ErrInvalidAmount = errors.New("types: invalid amount")
)
