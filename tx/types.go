// Package tx holds the building blocks of the send pipeline: input
// selection, essence construction with a remainder, and the lifecycle of a
// transaction from preparation to inclusion.
package tx

import (
	"fmt"
	"time"

	"github.com/bitfsorg/libwallet-go/types"
)

const (
	// MaxInputs is the largest number of inputs a transaction may consume.
	MaxInputs = 128
	// MaxOutputs is the largest number of outputs a transaction may create.
	MaxOutputs = 128
)

// Chain locates the key behind an address: m/44'/coin'/account'/chain/index,
// where chain is 1 for internal (remainder) addresses and 0 otherwise.
type Chain struct {
	Account  uint32 `json:"account"`
	Internal bool   `json:"internal"`
	Index    uint32 `json:"index"`
}

func (c Chain) String() string {
	chain := 0
	if c.Internal {
		chain = 1
	}
	return fmt.Sprintf("%d'/%d/%d", c.Account, chain, c.Index)
}

// InputSigningData is a consumable output together with what the secret
// manager needs to unlock it. Chain is nil for outputs owned by an alias or
// NFT address; those are unlocked by reference.
type InputSigningData struct {
	OutputID types.OutputID `json:"outputId"`
	Output   *types.Output  `json:"output"`
	Chain    *Chain         `json:"chain,omitempty"`
	BookedAt uint32         `json:"bookedAt,omitempty"`
}

// Remainder is the change output returned to the account.
type Remainder struct {
	Output  *types.Output `json:"output"`
	Address types.Address `json:"address"`
	Chain   *Chain        `json:"chain,omitempty"`
}

// Prepared is an unsigned transaction: the essence plus the inputs it
// consumes, in essence order.
type Prepared struct {
	Essence   types.Essence      `json:"essence"`
	Inputs    []InputSigningData `json:"inputs"`
	Remainder *Remainder         `json:"remainder,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// InputIDs returns the consumed output ids in essence order.
func (p *Prepared) InputIDs() []types.OutputID {
	ids := make([]types.OutputID, len(p.Inputs))
	for i, in := range p.Inputs {
		ids[i] = in.OutputID
	}
	return ids
}

// Signed is a prepared transaction with its unlocks attached.
type Signed struct {
	Payload *types.TransactionPayload `json:"payload"`
	Inputs  []InputSigningData        `json:"inputs"`
}

// NewSigned pairs the essence of p with unlocks and validates the result.
func NewSigned(p *Prepared, unlocks []types.Unlock) (*Signed, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prepared transaction", ErrNilParam)
	}
	payload := &types.TransactionPayload{Essence: p.Essence, Unlocks: unlocks}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return &Signed{Payload: payload, Inputs: p.Inputs}, nil
}

// ID returns the transaction id of the signed payload.
func (s *Signed) ID() types.TransactionID {
	return s.Payload.ID()
}
