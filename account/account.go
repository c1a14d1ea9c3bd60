// Package account holds the state of one wallet account and the
// transaction pipeline that spends from it: prepare, sign, submit and
// await inclusion.
//
// Account state is guarded by a reader/writer lock that is never held
// across a node, signing or proof-of-work round-trip. Operations snapshot
// what they need, release the lock, perform the I/O, then re-acquire the
// lock to validate and commit.
package account

import (
	"math/big"
	"slices"
	"time"

	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// AddressData is an address generated for the account.
type AddressData struct {
	Address types.Address `json:"address"`
	Bech32  string        `json:"bech32"`
	Chain   tx.Chain      `json:"chain"`
	// Used is set once an output owned by the address has been seen.
	Used bool `json:"used"`
}

// OutputData is an output owned by the account.
type OutputData struct {
	OutputID      types.OutputID      `json:"outputId"`
	Output        *types.Output       `json:"output"`
	Address       types.Address       `json:"address"`
	Chain         *tx.Chain           `json:"chain,omitempty"`
	TransactionID types.TransactionID `json:"transactionId"`
	BookedAt      uint32              `json:"bookedAt,omitempty"`
	Spent         bool                `json:"isSpent"`
}

func (o *OutputData) signingData() tx.InputSigningData {
	return tx.InputSigningData{
		OutputID: o.OutputID,
		Output:   o.Output,
		Chain:    o.Chain,
		BookedAt: o.BookedAt,
	}
}

// Transaction is a transaction sent by the account.
type Transaction struct {
	ID      types.TransactionID       `json:"id"`
	Payload *types.TransactionPayload `json:"payload"`
	Inputs  []tx.InputSigningData     `json:"inputs"`
	// Created lists the outputs of the transaction owned by the account.
	Created   []types.OutputID     `json:"created,omitempty"`
	BlockID   types.BlockID        `json:"blockId"`
	State     tx.State             `json:"state"`
	Inclusion types.InclusionState `json:"inclusionState"`
	Note      string               `json:"note,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	// SubmittedAt is the time of the latest submission or reissue.
	SubmittedAt time.Time `json:"submittedAt"`
	Reissues    int       `json:"reissues,omitempty"`
}

func (t *Transaction) clone() *Transaction {
	c := *t
	c.Inputs = slices.Clone(t.Inputs)
	c.Created = slices.Clone(t.Created)
	return &c
}

// Details is the persisted header of an account. Outputs and transactions
// are stored under their own record keys.
type Details struct {
	Index             uint32        `json:"index"`
	Alias             string        `json:"alias"`
	CoinType          uint32        `json:"coinType"`
	PublicAddresses   []AddressData `json:"publicAddresses"`
	InternalAddresses []AddressData `json:"internalAddresses"`
	// Locked are inputs reserved by submitted, not yet included transactions.
	Locked  []types.OutputID      `json:"lockedOutputs,omitempty"`
	Pending []types.TransactionID `json:"pendingTransactions,omitempty"`
}

// state is the in-memory form of an account.
type state struct {
	details      Details
	outputs      map[types.OutputID]*OutputData
	transactions map[types.TransactionID]*Transaction
	locked       map[types.OutputID]types.TransactionID
	pending      map[types.TransactionID]struct{}
}

func newState(d Details) *state {
	return &state{
		details:      d,
		outputs:      make(map[types.OutputID]*OutputData),
		transactions: make(map[types.TransactionID]*Transaction),
		locked:       make(map[types.OutputID]types.TransactionID),
		pending:      make(map[types.TransactionID]struct{}),
	}
}

// header returns Details with the lock and pending sets flattened.
func (s *state) header() Details {
	d := s.details
	d.PublicAddresses = slices.Clone(s.details.PublicAddresses)
	d.InternalAddresses = slices.Clone(s.details.InternalAddresses)
	d.Locked = make([]types.OutputID, 0, len(s.locked))
	for id := range s.locked {
		d.Locked = append(d.Locked, id)
	}
	slices.SortFunc(d.Locked, func(a, b types.OutputID) int { return a.Compare(b) })
	d.Pending = make([]types.TransactionID, 0, len(s.pending))
	for id := range s.pending {
		d.Pending = append(d.Pending, id)
	}
	slices.SortFunc(d.Pending, func(a, b types.TransactionID) int { return a.Compare(b) })
	return d
}

// restore rebuilds the lock and pending indexes from persisted records.
func (s *state) restore() {
	for _, id := range s.details.Pending {
		s.pending[id] = struct{}{}
		if t, ok := s.transactions[id]; ok {
			for _, in := range t.Inputs {
				s.locked[in.OutputID] = id
			}
		}
	}
	for _, id := range s.details.Locked {
		if _, ok := s.locked[id]; !ok {
			s.locked[id] = types.TransactionID{}
		}
	}
}

// addresses returns every address of the account by value.
func (s *state) addresses() map[types.Address]AddressData {
	all := make(map[types.Address]AddressData, len(s.details.PublicAddresses)+len(s.details.InternalAddresses))
	for _, a := range s.details.PublicAddresses {
		all[a.Address] = a
	}
	for _, a := range s.details.InternalAddresses {
		all[a.Address] = a
	}
	return all
}

func (s *state) markUsed(addr types.Address) {
	for i := range s.details.PublicAddresses {
		if s.details.PublicAddresses[i].Address == addr {
			s.details.PublicAddresses[i].Used = true
		}
	}
	for i := range s.details.InternalAddresses {
		if s.details.InternalAddresses[i].Address == addr {
			s.details.InternalAddresses[i].Used = true
		}
	}
}

// available returns unspent, unreserved outputs as selection candidates,
// plus the ids selection must skip.
func (s *state) available() ([]tx.InputSigningData, map[types.OutputID]struct{}) {
	candidates := make([]tx.InputSigningData, 0, len(s.outputs))
	exclude := make(map[types.OutputID]struct{})
	for id, out := range s.outputs {
		if out.Spent {
			exclude[id] = struct{}{}
			continue
		}
		if _, reserved := s.locked[id]; reserved {
			exclude[id] = struct{}{}
			continue
		}
		candidates = append(candidates, out.signingData())
	}
	slices.SortFunc(candidates, func(a, b tx.InputSigningData) int { return a.OutputID.Compare(b.OutputID) })
	return candidates, exclude
}

// Balance summarises the unspent outputs of an account.
type Balance struct {
	// Total is the base coin held by all unspent outputs.
	Total uint64 `json:"total"`
	// Available excludes reserved outputs and the storage deposits of
	// outputs that cannot be spent freely.
	Available uint64 `json:"available"`
	// RequiredStorageDeposit is locked in NFT, alias, foundry and
	// token-holding outputs.
	RequiredStorageDeposit uint64                     `json:"requiredStorageDeposit"`
	NativeTokens           map[types.TokenID]*big.Int `json:"nativeTokens"`
	Nfts                   []types.NftID              `json:"nfts"`
	Aliases                []types.AliasID            `json:"aliases"`
	Foundries              []types.FoundryID          `json:"foundries"`
	// PotentiallyLocked are outputs with a timelock, expiration or storage
	// deposit return condition.
	PotentiallyLocked []types.OutputID `json:"potentiallyLockedOutputs"`
}

func (s *state) balance(rent types.RentStructure, now uint32) Balance {
	b := Balance{NativeTokens: make(map[types.TokenID]*big.Int)}
	for id, od := range s.outputs {
		if od.Spent {
			continue
		}
		out := od.Output
		b.Total += out.Amount
		for _, nt := range out.NativeTokens {
			sum, ok := b.NativeTokens[nt.ID]
			if !ok {
				sum = new(big.Int)
				b.NativeTokens[nt.ID] = sum
			}
			sum.Add(sum, nt.Amount)
		}

		conditioned := false
		for _, k := range []types.UnlockConditionKind{types.UnlockTimelock, types.UnlockExpiration, types.UnlockStorageDepositReturn} {
			if _, ok := out.UnlockCondition(k); ok {
				conditioned = true
			}
		}
		if conditioned {
			b.PotentiallyLocked = append(b.PotentiallyLocked, id)
		}

		var deposit uint64
		switch out.Kind {
		case types.OutputAlias:
			b.Aliases = append(b.Aliases, out.AliasID.OrFromOutputID(id))
			deposit = rent.MinStorageDeposit(out)
		case types.OutputNft:
			b.Nfts = append(b.Nfts, out.NftID.OrFromOutputID(id))
			deposit = rent.MinStorageDeposit(out)
		case types.OutputFoundry:
			if fid, ok := out.FoundryID(); ok {
				b.Foundries = append(b.Foundries, fid)
			}
			deposit = rent.MinStorageDeposit(out)
		default:
			if len(out.NativeTokens) > 0 {
				deposit = rent.MinStorageDeposit(out)
			}
		}
		deposit = min(deposit, out.Amount)
		b.RequiredStorageDeposit += deposit

		_, reserved := s.locked[id]
		_, unlocked := out.OwnerAt(now)
		if !reserved && unlocked && !conditioned {
			b.Available += out.Amount - deposit
		}
	}
	slices.SortFunc(b.Nfts, func(a, c types.NftID) int { return a.Compare(c) })
	slices.SortFunc(b.Aliases, func(a, c types.AliasID) int { return a.Compare(c) })
	slices.SortFunc(b.Foundries, func(a, c types.FoundryID) int { return a.Compare(c) })
	slices.SortFunc(b.PotentiallyLocked, func(a, c types.OutputID) int { return a.Compare(c) })
	return b
}
