// Package event delivers wallet notifications to registered listeners.
//
// Every event is keyed by the index of the account it concerns. Delivery is
// best effort: an event with no matching listener is dropped, and a listener
// whose queue is full misses the event rather than stalling the producer.
package event

import (
	"time"

	"github.com/bitfsorg/libwallet-go/types"
)

// Kind identifies an event variant. Listeners filter on it.
type Kind string

const (
	KindConsolidationRequired   Kind = "consolidationRequired"
	KindLedgerAddressGeneration Kind = "ledgerAddressGeneration"
	KindNewOutput               Kind = "newOutput"
	KindSpentOutput             Kind = "spentOutput"
	KindTransactionInclusion    Kind = "transactionInclusion"
	KindTransactionProgress     Kind = "transactionProgress"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	KindConsolidationRequired,
	KindLedgerAddressGeneration,
	KindNewOutput,
	KindSpentOutput,
	KindTransactionInclusion,
	KindTransactionProgress,
}

// Event is an immutable notification about one account.
type Event struct {
	AccountIndex uint32
	Kind         Kind
	Timestamp    time.Time
	Data         any
}

// NewEvent stamps a new event with the current time.
func NewEvent(accountIndex uint32, kind Kind, data any) Event {
	return Event{
		AccountIndex: accountIndex,
		Kind:         kind,
		Timestamp:    time.Now(),
		Data:         data,
	}
}

// AddressData accompanies KindLedgerAddressGeneration: an address the user
// should confirm on a signing device.
type AddressData struct {
	Address string
}

// NewOutputData accompanies KindNewOutput.
type NewOutputData struct {
	OutputID types.OutputID
	Output   *types.Output
	// Address is the bech32 address that owns the output.
	Address string
	// TransactionID is set when the output was created by one of the
	// account's own transactions.
	TransactionID types.TransactionID
}

// SpentOutputData accompanies KindSpentOutput.
type SpentOutputData struct {
	OutputID types.OutputID
}

// TransactionInclusionData accompanies KindTransactionInclusion.
type TransactionInclusionData struct {
	TransactionID types.TransactionID
	State         types.InclusionState
}

// ConsolidationData accompanies KindConsolidationRequired.
type ConsolidationData struct {
	// Outputs is the number of unspent basic outputs held by the account.
	Outputs   int
	Threshold int
}

// ProgressStep is a phase of sending a transaction, in emission order.
type ProgressStep string

const (
	StepSelectingInputs                   ProgressStep = "selectingInputs"
	StepGeneratingRemainderDepositAddress ProgressStep = "generatingRemainderDepositAddress"
	StepPreparedTransaction               ProgressStep = "preparedTransaction"
	StepPreparedTransactionEssenceHash    ProgressStep = "preparedTransactionEssenceHash"
	StepSigningTransaction                ProgressStep = "signingTransaction"
	StepPerformingPow                     ProgressStep = "performingPow"
	StepBroadcasting                      ProgressStep = "broadcasting"
)

// Progress accompanies KindTransactionProgress.
type Progress struct {
	Step ProgressStep
	// Address is the remainder address for StepGeneratingRemainderDepositAddress.
	Address string
	// EssenceHash is set for StepPreparedTransactionEssenceHash.
	EssenceHash string
	// Essence is set for StepPreparedTransaction.
	Essence *types.Essence
}
