package wallet

import "errors"

var (
	// ErrInvalidOptions indicates a required option is missing.
	ErrInvalidOptions = errors.New("wallet: invalid options")

	// ErrAccountNotFound indicates no account matches the alias or index.
	ErrAccountNotFound = errors.New("wallet: account not found")

	// ErrAccountAliasExists indicates the alias is already taken.
	ErrAccountAliasExists = errors.New("wallet: account alias already exists")

	// ErrAccountLimit indicates the next account index would reach the
	// BIP32 hardened boundary.
	ErrAccountLimit = errors.New("wallet: account index would exceed BIP32 hardened boundary")

	// ErrNoAccounts indicates the wallet has no account to operate on.
	ErrNoAccounts = errors.New("wallet: no accounts")

	// ErrAccountHasHistory indicates an account with outputs or
	// transactions cannot be removed.
	ErrAccountHasHistory = errors.New("wallet: account has history")

	// ErrInvalidAccountList indicates the persisted account list is not a
	// contiguous run of indexes starting at zero.
	ErrInvalidAccountList = errors.New("wallet: invalid persisted account list")

	// ErrEmptyPassword indicates an empty storage password.
	ErrEmptyPassword = errors.New("wallet: storage password must not be empty")

	// ErrClosed indicates the wallet was closed.
	ErrClosed = errors.New("wallet: closed")
)
