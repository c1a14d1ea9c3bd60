package account

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// syncConcurrency bounds parallel node requests during Sync.
const syncConcurrency = 8

type syncTarget struct {
	address types.Address
	bech32  string
	chain   *tx.Chain
}

// Sync refreshes the output cache from the node, settles pending
// transactions that reached a terminal state and returns the new balance.
//
// Node requests run without the account lock. Outputs that appeared or
// were spent while Sync was in flight are left for the next run.
func (h *Handle) Sync(ctx context.Context) (Balance, error) {
	const op = "account.Sync"

	h.mu.RLock()
	targets := h.syncTargetsLocked()
	known := make(map[types.OutputID]struct{}, len(h.st.outputs))
	for id := range h.st.outputs {
		known[id] = struct{}{}
	}
	pending := make([]types.TransactionID, 0, len(h.st.pending))
	for id := range h.st.pending {
		pending = append(pending, id)
	}
	h.mu.RUnlock()

	found, err := h.fetchOutputIDs(ctx, targets)
	if err != nil {
		return Balance{}, errs.E(errs.KindNetwork, op, err)
	}
	var unknown []types.OutputID
	for id := range found {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	fetched, err := h.fetchOutputs(ctx, unknown)
	if err != nil {
		return Balance{}, errs.E(errs.KindNetwork, op, err)
	}

	states := make(map[types.TransactionID]types.InclusionState, len(pending))
	for _, id := range pending {
		state, err := h.deps.Client.InclusionState(ctx, id)
		if err != nil {
			h.logger.Warn("inclusion state unavailable", "tx", id.String(), "error", err)
			continue
		}
		states[id] = state
	}

	rent, err := h.deps.Client.RentStructure(ctx)
	if err != nil {
		return Balance{}, errs.E(errs.KindNetwork, op, err)
	}

	h.mu.Lock()
	var (
		added    []event.NewOutputData
		spent    []types.OutputID
		included []event.TransactionInclusionData
	)
	for _, md := range fetched {
		if _, exists := h.st.outputs[md.OutputID]; exists {
			continue
		}
		target := found[md.OutputID]
		h.st.outputs[md.OutputID] = &OutputData{
			OutputID:      md.OutputID,
			Output:        md.Output,
			Address:       target.address,
			Chain:         target.chain,
			TransactionID: md.TransactionID,
			BookedAt:      md.BookedAt,
			Spent:         md.Spent,
		}
		h.st.markUsed(target.address)
		added = append(added, event.NewOutputData{
			OutputID:      md.OutputID,
			Output:        md.Output,
			Address:       target.bech32,
			TransactionID: md.TransactionID,
		})
	}
	for id, od := range h.st.outputs {
		if od.Spent {
			continue
		}
		if _, ok := found[id]; ok {
			continue
		}
		if _, wasKnown := known[id]; !wasKnown {
			continue
		}
		// Outputs of our own pending transactions are not on the ledger yet.
		if _, ours := h.st.pending[od.TransactionID]; ours {
			continue
		}
		od.Spent = true
		spent = append(spent, id)
	}
	for id, state := range states {
		if !state.Terminal() {
			if t, ok := h.st.transactions[id]; ok {
				t.Inclusion = state
			}
			continue
		}
		changed, err := h.settleLocked(ctx, id, state)
		if err != nil {
			h.mu.Unlock()
			return Balance{}, err
		}
		if changed {
			included = append(included, event.TransactionInclusionData{TransactionID: id, State: state})
		}
	}

	basic := 0
	for _, od := range h.st.outputs {
		if !od.Spent && od.Output.Kind == types.OutputBasic {
			basic++
		}
	}
	if err := h.persistLocked(ctx); err != nil {
		h.mu.Unlock()
		return Balance{}, err
	}
	balance := h.st.balance(rent, uint32(h.deps.Now().Unix()))
	h.mu.Unlock()

	slices.SortFunc(added, func(a, b event.NewOutputData) int { return a.OutputID.Compare(b.OutputID) })
	slices.SortFunc(spent, func(a, b types.OutputID) int { return a.Compare(b) })
	slices.SortFunc(included, func(a, b event.TransactionInclusionData) int { return a.TransactionID.Compare(b.TransactionID) })
	for _, o := range added {
		h.emit(event.KindNewOutput, o)
	}
	for _, id := range spent {
		h.emit(event.KindSpentOutput, event.SpentOutputData{OutputID: id})
	}
	for _, inc := range included {
		h.deps.Metrics.inclusionResult(inc.State)
		h.emit(event.KindTransactionInclusion, inc)
	}
	if threshold := h.deps.ConsolidationThreshold; threshold > 0 && basic >= threshold {
		h.emit(event.KindConsolidationRequired, event.ConsolidationData{Outputs: basic, Threshold: threshold})
	}

	h.logger.Info("account synced",
		"new", len(added),
		"spent", len(spent),
		"settled", len(included),
		"total", balance.Total,
	)
	return balance, nil
}

// SearchAddresses recovers funds on addresses an account restored from its
// mnemonic has not generated yet. It generates gap addresses at a time on
// the public chain, then the internal chain, until a whole batch holds no
// outputs, and finishes with a Sync.
func (h *Handle) SearchAddresses(ctx context.Context, gap int) (Balance, error) {
	const op = "account.SearchAddresses"
	if gap <= 0 {
		return Balance{}, errs.E(errs.KindValidation, op, fmt.Errorf("%w: address gap %d", ErrInvalidParams, gap))
	}
	for _, internal := range []bool{false, true} {
		for {
			batch, err := h.GenerateAddresses(ctx, gap, internal)
			if err != nil {
				return Balance{}, err
			}
			targets := make([]syncTarget, len(batch))
			for i, a := range batch {
				chain := a.Chain
				targets[i] = syncTarget{address: a.Address, bech32: a.Bech32, chain: &chain}
			}
			found, err := h.fetchOutputIDs(ctx, targets)
			if err != nil {
				return Balance{}, errs.E(errs.KindNetwork, op, err)
			}
			h.logger.Debug("address batch searched", "internal", internal, "count", len(batch), "outputs", len(found))
			if len(found) == 0 {
				break
			}
		}
	}
	return h.Sync(ctx)
}

// syncTargetsLocked lists the account's key addresses plus the addresses
// of the aliases and NFTs it holds, which may own outputs of their own.
func (h *Handle) syncTargetsLocked() []syncTarget {
	var targets []syncTarget
	for _, group := range [][]AddressData{h.st.details.PublicAddresses, h.st.details.InternalAddresses} {
		for _, a := range group {
			chain := a.Chain
			targets = append(targets, syncTarget{address: a.Address, bech32: a.Bech32, chain: &chain})
		}
	}
	for id, od := range h.st.outputs {
		if od.Spent {
			continue
		}
		var addr types.Address
		switch od.Output.Kind {
		case types.OutputAlias:
			addr = types.AliasAddress(od.Output.AliasID.OrFromOutputID(id))
		case types.OutputNft:
			addr = types.NftAddress(od.Output.NftID.OrFromOutputID(id))
		default:
			continue
		}
		targets = append(targets, syncTarget{address: addr, bech32: addr.Bech32(h.deps.HRP)})
	}
	return targets
}

func (h *Handle) fetchOutputIDs(ctx context.Context, targets []syncTarget) (map[types.OutputID]syncTarget, error) {
	var mu sync.Mutex
	found := make(map[types.OutputID]syncTarget)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, target := range targets {
		g.Go(func() error {
			ids, err := h.deps.Client.OutputIDs(gctx, target.bech32)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				found[id] = target
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

func (h *Handle) fetchOutputs(ctx context.Context, ids []types.OutputID) ([]*network.OutputWithMetadata, error) {
	fetched := make([]*network.OutputWithMetadata, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			md, err := h.deps.Client.Output(gctx, id)
			if err != nil {
				return err
			}
			c := *md
			c.OutputID = id
			fetched[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}
