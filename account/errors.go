package account

import (
	"errors"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

var (
	// ErrStaleInputState indicates an input was spent or reserved by another
	// transaction between preparation and submission.
	ErrStaleInputState = errors.New("account: input already spent or reserved")

	// ErrTransactionNotFound indicates an unknown transaction id.
	ErrTransactionNotFound = errors.New("account: transaction not found")

	// ErrNotSubmitted indicates an operation that needs a submitted
	// transaction was given one in another state.
	ErrNotSubmitted = errors.New("account: transaction is not submitted")

	// ErrNftNotFound indicates no unspent output of the account holds the NFT.
	ErrNftNotFound = errors.New("account: nft not found")

	// ErrAliasNotFound indicates no unspent output of the account holds the alias.
	ErrAliasNotFound = errors.New("account: alias not found")

	// ErrFoundryNotFound indicates no unspent output of the account holds the foundry.
	ErrFoundryNotFound = errors.New("account: foundry not found")

	// ErrFoundryNotEmpty indicates a foundry with tokens still in circulation.
	ErrFoundryNotEmpty = errors.New("account: foundry circulating supply is not zero")

	// ErrNoAddresses indicates the account has no address to use as a default.
	ErrNoAddresses = errors.New("account: no addresses generated")

	// ErrNotClaimable indicates an output is unknown, spent, reserved or not
	// unlockable by the account right now.
	ErrNotClaimable = errors.New("account: output not claimable")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("account: invalid parameters")
)

// kindOf classifies the sentinels produced while preparing a transaction.
// Call sites that talk to the node, the secret manager or storage wrap with
// those kinds directly.
func kindOf(err error) errs.Kind {
	switch {
	case errors.Is(err, ErrStaleInputState):
		return errs.KindStaleInputState
	case errors.Is(err, tx.ErrInsufficientFunds),
		errors.Is(err, tx.ErrInsufficientNativeTokens),
		errors.Is(err, tx.ErrTokenNotFound),
		errors.Is(err, tx.ErrRequiredInputNotFound),
		errors.Is(err, ErrNftNotFound),
		errors.Is(err, ErrAliasNotFound),
		errors.Is(err, ErrFoundryNotFound):
		return errs.KindInsufficientResource
	case errors.Is(err, types.ErrInvalidAddress),
		errors.Is(err, types.ErrNetworkMismatch),
		errors.Is(err, types.ErrDecode),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidOutput),
		errors.Is(err, tx.ErrAmountBelowMinimumStorageDeposit),
		errors.Is(err, tx.ErrNoOutputs),
		errors.Is(err, tx.ErrTooManyInputs),
		errors.Is(err, tx.ErrTooManyOutputs),
		errors.Is(err, tx.ErrNilParam),
		errors.Is(err, tx.ErrInvalidTransition),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrNotSubmitted),
		errors.Is(err, ErrFoundryNotEmpty),
		errors.Is(err, ErrNoAddresses),
		errors.Is(err, ErrNotClaimable),
		errors.Is(err, ErrInvalidParams):
		return errs.KindValidation
	default:
		return errs.KindUnknown
	}
}

// wrap classifies err unless it already carries a kind.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *errs.Error
	if errors.As(err, &classified) {
		return err
	}
	return errs.E(kindOf(err), op, err)
}
