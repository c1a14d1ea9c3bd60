package tx

import (
	"cmp"
	"fmt"
	"math/big"
	"math/bits"
	"slices"
	"time"

	"github.com/bitfsorg/libwallet-go/types"
)

// RemainderStrategy chooses where change goes.
type RemainderStrategy string

const (
	// RemainderReuseAddress sends change to the address of the first input.
	RemainderReuseAddress RemainderStrategy = "reuseAddress"
	// RemainderChangeAddress sends change to a fresh internal address.
	RemainderChangeAddress RemainderStrategy = "changeAddress"
	// RemainderCustom sends change to a caller-supplied address.
	RemainderCustom RemainderStrategy = "customAddress"
)

// BuildParams is the input of Build.
type BuildParams struct {
	NetworkID uint64
	Inputs    []InputSigningData
	Outputs   []*types.Output
	// RemainderAddress receives change. It may be null when the inputs
	// match the outputs exactly.
	RemainderAddress types.Address
	RemainderChain   *Chain
	Rent             types.RentStructure
	Payload          *types.TaggedData
	Now              time.Time
}

// Build assembles an unsigned transaction from selected inputs and the
// outputs to create. Change, and any native tokens not claimed by an
// output, go to a remainder output appended last. Outputs may be empty
// when inputs are burned and everything they hold returns as remainder.
//
// Input order: alias, NFT, foundry, then basic outputs, so reference
// unlocks always point backwards.
func Build(p BuildParams) (*Prepared, error) {
	if len(p.Inputs) == 0 {
		return nil, fmt.Errorf("%w: inputs", ErrNilParam)
	}
	if len(p.Inputs) > MaxInputs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(p.Inputs), MaxInputs)
	}

	outputs := make([]*types.Output, 0, len(p.Outputs)+1)
	for i, out := range p.Outputs {
		if out == nil {
			return nil, fmt.Errorf("%w: output %d", ErrNilParam, i)
		}
		outputs = append(outputs, out)
	}
	for _, in := range p.Inputs {
		if in.Output == nil {
			return nil, fmt.Errorf("%w: input %s has no output", ErrNilParam, in.OutputID)
		}
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	outputs = append(outputs, StorageDepositReturns(p.Inputs, uint32(now.Unix()))...)
	for i, out := range outputs {
		if need := p.Rent.MinStorageDeposit(out); out.Amount < need {
			return nil, fmt.Errorf("%w: output %d holds %d, needs %d", ErrAmountBelowMinimumStorageDeposit, i, out.Amount, need)
		}
	}

	inAmount, inTokens, err := Totals(inputOutputs(p.Inputs))
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	outAmount, outTokens, err := Totals(outputs)
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	if inAmount < outAmount {
		return nil, fmt.Errorf("%w: inputs %d < outputs %d", ErrInsufficientFunds, inAmount, outAmount)
	}

	var restTokens []types.NativeToken
	for id, have := range inTokens {
		rest := new(big.Int).Set(have)
		if want, ok := outTokens[id]; ok {
			rest.Sub(rest, want)
		}
		if rest.Sign() > 0 {
			restTokens = append(restTokens, types.NativeToken{ID: id, Amount: rest})
		}
	}
	for id, want := range outTokens {
		have, ok := inTokens[id]
		if !ok || have.Cmp(want) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientNativeTokens, id)
		}
	}
	slices.SortFunc(restTokens, func(a, b types.NativeToken) int { return a.ID.Compare(b.ID) })

	var remainder *Remainder
	if rest := inAmount - outAmount; rest > 0 || len(restTokens) > 0 {
		if p.RemainderAddress.IsNull() {
			return nil, fmt.Errorf("%w: remainder address", ErrNilParam)
		}
		out := types.NewBasicOutput(rest, p.RemainderAddress)
		out.NativeTokens = restTokens
		if need := p.Rent.MinStorageDeposit(out); rest < need {
			return nil, fmt.Errorf("%w: remainder %d below storage deposit %d", ErrInsufficientFunds, rest, need)
		}
		remainder = &Remainder{Output: out, Address: p.RemainderAddress, Chain: p.RemainderChain}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	if len(outputs) > MaxOutputs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyOutputs, len(outputs), MaxOutputs)
	}

	inputs := slices.Clone(p.Inputs)
	slices.SortStableFunc(inputs, func(a, b InputSigningData) int {
		return cmp.Compare(inputRank(a.Output.Kind), inputRank(b.Output.Kind))
	})

	prepared := &Prepared{
		Essence: types.Essence{
			NetworkID:        p.NetworkID,
			InputsCommitment: types.InputsCommitment(inputOutputs(inputs)),
			Outputs:          outputs,
			Payload:          p.Payload,
		},
		Inputs:    inputs,
		Remainder: remainder,
		CreatedAt: now,
	}
	prepared.Essence.Inputs = prepared.InputIDs()
	return prepared, nil
}

// StorageDepositReturns returns the outputs owed to the return addresses of
// inputs consumed at unix time now. An input past its expiration is
// unlocked by the return address itself and owes nothing.
func StorageDepositReturns(inputs []InputSigningData, now uint32) []*types.Output {
	var returns []*types.Output
	for _, in := range inputs {
		if in.Output == nil {
			continue
		}
		sdr, ok := in.Output.UnlockCondition(types.UnlockStorageDepositReturn)
		if !ok {
			continue
		}
		if exp, ok := in.Output.UnlockCondition(types.UnlockExpiration); ok && now >= exp.UnixTime {
			continue
		}
		returns = append(returns, types.NewBasicOutput(sdr.Amount, sdr.Address))
	}
	return returns
}

// NeedsRemainder reports whether inputs hold more base coin or native
// tokens than outputs claim.
func NeedsRemainder(inputs []InputSigningData, outputs []*types.Output) (bool, error) {
	inAmount, inTokens, err := Totals(inputOutputs(inputs))
	if err != nil {
		return false, fmt.Errorf("inputs: %w", err)
	}
	outAmount, outTokens, err := Totals(outputs)
	if err != nil {
		return false, fmt.Errorf("outputs: %w", err)
	}
	if inAmount > outAmount {
		return true, nil
	}
	for id, have := range inTokens {
		want, ok := outTokens[id]
		if !ok || have.Cmp(want) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func inputRank(k types.OutputKind) int {
	switch k {
	case types.OutputAlias:
		return 0
	case types.OutputNft:
		return 1
	case types.OutputFoundry:
		return 2
	default:
		return 3
	}
}

func inputOutputs(inputs []InputSigningData) []*types.Output {
	outs := make([]*types.Output, len(inputs))
	for i, in := range inputs {
		outs[i] = in.Output
	}
	return outs
}

// Totals sums the base coin and native tokens of outputs. A base coin sum
// that does not fit in a uint64 is types.ErrInvalidAmount.
func Totals(outputs []*types.Output) (uint64, map[types.TokenID]*big.Int, error) {
	var amount uint64
	tokens := make(map[types.TokenID]*big.Int)
	for _, out := range outputs {
		var err error
		if amount, err = addAmount(amount, out.Amount); err != nil {
			return 0, nil, err
		}
		addTokens(tokens, out.NativeTokens)
	}
	return amount, tokens, nil
}

func addAmount(sum, amount uint64) (uint64, error) {
	total, carry := bits.Add64(sum, amount, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: base coin sum overflows", types.ErrInvalidAmount)
	}
	return total, nil
}

func addTokens(sums map[types.TokenID]*big.Int, tokens []types.NativeToken) {
	for _, nt := range tokens {
		sum, ok := sums[nt.ID]
		if !ok {
			sum = new(big.Int)
			sums[nt.ID] = sum
		}
		if nt.Amount != nil {
			sum.Add(sum, nt.Amount)
		}
	}
}
