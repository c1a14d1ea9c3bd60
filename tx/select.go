package tx

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/bitfsorg/libwallet-go/types"
)

// Target describes what a selection must cover.
type Target struct {
	// Amount is the base coin sum of the outputs to create.
	Amount uint64
	// NativeTokens are the token sums of the outputs to create.
	NativeTokens map[types.TokenID]*big.Int
	// Required inputs are always selected, before any other input.
	Required []types.OutputID
	// Exclude lists outputs that must never be selected: spent in the local
	// cache, or reserved by a pending transaction.
	Exclude map[types.OutputID]struct{}
	// Rent prices the remainder output, if one is needed.
	Rent types.RentStructure
	// Now is the unix time used to evaluate timelocks.
	Now uint32
}

// selection accumulates chosen inputs and their sums.
type selection struct {
	inputs []InputSigningData
	chosen map[types.OutputID]struct{}
	amount uint64
	tokens map[types.TokenID]*big.Int
}

func (s *selection) add(in InputSigningData) error {
	amount, err := addAmount(s.amount, in.Output.Amount)
	if err != nil {
		return fmt.Errorf("input %s: %w", in.OutputID, err)
	}
	s.inputs = append(s.inputs, in)
	s.chosen[in.OutputID] = struct{}{}
	s.amount = amount
	addTokens(s.tokens, in.Output.NativeTokens)
	return nil
}

func (s *selection) has(id types.OutputID) bool {
	_, ok := s.chosen[id]
	return ok
}

// remainderTokens returns what the selection holds beyond the target.
func (s *selection) remainderTokens(want map[types.TokenID]*big.Int) []types.NativeToken {
	var out []types.NativeToken
	for id, have := range s.tokens {
		rest := new(big.Int).Set(have)
		if w, ok := want[id]; ok {
			rest.Sub(rest, w)
		}
		if rest.Sign() > 0 {
			out = append(out, types.NativeToken{ID: id, Amount: rest})
		}
	}
	slices.SortFunc(out, func(a, b types.NativeToken) int { return a.ID.Compare(b.ID) })
	return out
}

// covered reports whether the base coin sum pays for the target plus a
// remainder that meets its own storage deposit.
func (s *selection) covered(t Target) bool {
	if s.amount < t.Amount {
		return false
	}
	rest := s.amount - t.Amount
	tokens := s.remainderTokens(t.NativeTokens)
	if rest == 0 && len(tokens) == 0 {
		return true
	}
	return rest >= t.Rent.MinBasicDeposit(types.KeyAddress([types.HashLength]byte{}), tokens)
}

// selectable reports whether automatic selection may pick in. Chain outputs
// (alias, foundry, NFT) and outputs with return obligations are only used
// when required.
func selectable(in InputSigningData, t Target) bool {
	if in.Output == nil {
		return false
	}
	if _, excluded := t.Exclude[in.OutputID]; excluded {
		return false
	}
	if in.Output.Kind != types.OutputBasic {
		return false
	}
	if _, ok := in.Output.UnlockCondition(types.UnlockStorageDepositReturn); ok {
		return false
	}
	if _, ok := in.Output.UnlockCondition(types.UnlockExpiration); ok {
		return false
	}
	_, unlocked := in.Output.OwnerAt(t.Now)
	return unlocked
}

// SelectInputs picks inputs from available that cover t plus the storage
// deposit returns owed by required inputs. Required inputs come first, then
// outputs holding the requested native tokens, then basic outputs largest
// first until the base coin target and remainder deposit are met. Excluded
// outputs are never selected.
func SelectInputs(available []InputSigningData, t Target) ([]InputSigningData, error) {
	sel := &selection{
		chosen: make(map[types.OutputID]struct{}),
		tokens: make(map[types.TokenID]*big.Int),
	}

	byID := make(map[types.OutputID]InputSigningData, len(available))
	for _, in := range available {
		byID[in.OutputID] = in
	}
	for _, id := range t.Required {
		in, ok := byID[id]
		if !ok || in.Output == nil {
			return nil, fmt.Errorf("%w: %s", ErrRequiredInputNotFound, id)
		}
		if _, excluded := t.Exclude[id]; excluded {
			return nil, fmt.Errorf("%w: %s is spent or reserved", ErrRequiredInputNotFound, id)
		}
		if !sel.has(id) {
			if err := sel.add(in); err != nil {
				return nil, err
			}
		}
	}

	// Required inputs may owe storage deposit returns on top of the target.
	for _, ret := range StorageDepositReturns(sel.inputs, t.Now) {
		amount, err := addAmount(t.Amount, ret.Amount)
		if err != nil {
			return nil, err
		}
		t.Amount = amount
	}

	var candidates []InputSigningData
	for _, in := range available {
		if !sel.has(in.OutputID) && selectable(in, t) {
			candidates = append(candidates, in)
		}
	}

	if err := selectNativeTokens(sel, candidates, t); err != nil {
		return nil, err
	}

	slices.SortStableFunc(candidates, func(a, b InputSigningData) int {
		return cmp.Compare(b.Output.Amount, a.Output.Amount)
	})
	for _, in := range candidates {
		if sel.covered(t) {
			break
		}
		if sel.has(in.OutputID) {
			continue
		}
		if err := sel.add(in); err != nil {
			return nil, err
		}
	}
	if !sel.covered(t) {
		return nil, fmt.Errorf("%w: need %d plus remainder deposit, have %d", ErrInsufficientFunds, t.Amount, sel.amount)
	}
	if len(sel.inputs) > MaxInputs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(sel.inputs), MaxInputs)
	}
	return sel.inputs, nil
}

func selectNativeTokens(sel *selection, candidates []InputSigningData, t Target) error {
	ids := make([]types.TokenID, 0, len(t.NativeTokens))
	for id := range t.NativeTokens {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b types.TokenID) int { return a.Compare(b) })

	for _, id := range ids {
		want := t.NativeTokens[id]
		var holders []InputSigningData
		for _, in := range candidates {
			if in.Output.NativeTokenAmount(id).Sign() > 0 {
				holders = append(holders, in)
			}
		}
		have := func() *big.Int {
			if v, ok := sel.tokens[id]; ok {
				return v
			}
			return new(big.Int)
		}
		if have().Cmp(want) >= 0 {
			continue
		}
		if len(holders) == 0 && have().Sign() == 0 {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, id)
		}
		slices.SortStableFunc(holders, func(a, b InputSigningData) int {
			return b.Output.NativeTokenAmount(id).Cmp(a.Output.NativeTokenAmount(id))
		})
		for _, in := range holders {
			if have().Cmp(want) >= 0 {
				break
			}
			if !sel.has(in.OutputID) {
				if err := sel.add(in); err != nil {
					return err
				}
			}
		}
		if have().Cmp(want) < 0 {
			return fmt.Errorf("%w: %s need %s, have %s", ErrInsufficientNativeTokens, id, want, have())
		}
	}
	return nil
}
