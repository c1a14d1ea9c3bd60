package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrNoOutputs indicates a transaction without outputs was requested.
	ErrNoOutputs = errors.New("tx: no outputs")

	// ErrInsufficientFunds indicates the available inputs cannot cover the
	// outputs plus any remainder deposit.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrInsufficientNativeTokens indicates a native token is held, but not
	// in the required amount.
	ErrInsufficientNativeTokens = errors.New("tx: insufficient native tokens")

	// ErrTokenNotFound indicates no available input holds a required token.
	ErrTokenNotFound = errors.New("tx: native token not found")

	// ErrRequiredInputNotFound indicates a mandatory input is unknown, spent
	// or locked.
	ErrRequiredInputNotFound = errors.New("tx: required input not available")

	// ErrAmountBelowMinimumStorageDeposit indicates an output does not pay
	// for its own storage.
	ErrAmountBelowMinimumStorageDeposit = errors.New("tx: amount below minimum storage deposit")

	// ErrTooManyInputs indicates the selection exceeds MaxInputs.
	ErrTooManyInputs = errors.New("tx: too many inputs")

	// ErrTooManyOutputs indicates the outputs exceed MaxOutputs.
	ErrTooManyOutputs = errors.New("tx: too many outputs")

	// ErrInvalidTransition indicates a lifecycle event not allowed in the
	// current state.
	ErrInvalidTransition = errors.New("tx: invalid lifecycle transition")
)
