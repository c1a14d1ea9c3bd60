// Package network is the wallet's boundary to a ledger node.
package network

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libwallet-go/types"
)

// Client is the node API the wallet depends on.
type Client interface {
	// RentStructure returns the storage deposit parameters.
	RentStructure(ctx context.Context) (types.RentStructure, error)

	// TokenSupply returns the total base token supply.
	TokenSupply(ctx context.Context) (uint64, error)

	// Bech32HRP returns the address prefix of the node's network.
	Bech32HRP(ctx context.Context) (string, error)

	// NetworkID returns the id committed to by transaction essences.
	NetworkID(ctx context.Context) (uint64, error)

	// MinPoWScore returns the leading zero bits a block hash must carry.
	// Zero means the node does not require proof-of-work.
	MinPoWScore(ctx context.Context) (uint32, error)

	// Tips returns blocks a new block may reference as parents.
	Tips(ctx context.Context) ([]types.BlockID, error)

	// SubmitBlock hands a block to the node and returns its id.
	SubmitBlock(ctx context.Context, block *types.Block) (types.BlockID, error)

	// InclusionState returns the ledger status of a transaction.
	InclusionState(ctx context.Context, id types.TransactionID) (types.InclusionState, error)

	// OutputIDs returns the unspent outputs a bech32 address owns, or will
	// own once they expire because it is their expiration return address.
	OutputIDs(ctx context.Context, address string) ([]types.OutputID, error)

	// Output returns an output with its ledger metadata.
	Output(ctx context.Context, id types.OutputID) (*OutputWithMetadata, error)
}

// OutputWithMetadata is an output as reported by the node.
type OutputWithMetadata struct {
	OutputID      types.OutputID      `json:"outputId"`
	Output        *types.Output       `json:"output"`
	BlockID       types.BlockID       `json:"blockId"`
	TransactionID types.TransactionID `json:"transactionId"`
	Spent         bool                `json:"isSpent"`
	// SpentBy is the transaction that consumed the output, when Spent.
	SpentBy types.TransactionID `json:"transactionIdSpent"`
	// BookedAt is the unix time the output was booked into the ledger.
	BookedAt uint32 `json:"milestoneTimestampBooked"`
}

// CheckHRP verifies the node serves the network whose address prefix is want.
func CheckHRP(ctx context.Context, c Client, want string) error {
	got, err := c.Bech32HRP(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: node prefix %q, configured %q", ErrNetworkMismatch, got, want)
	}
	return nil
}
