package account

import (
	"context"
	"fmt"
	"slices"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// claimConditions keep an output out of automatic input selection.
var claimConditions = []types.UnlockConditionKind{
	types.UnlockStorageDepositReturn,
	types.UnlockExpiration,
	types.UnlockTimelock,
}

// claimableLocked reports whether od is a basic output carrying a claim
// condition that an account address can unlock at now.
func (h *Handle) claimableLocked(od *OutputData, owned map[types.Address]AddressData, now uint32) bool {
	if od.Spent || od.Output == nil || od.Output.Kind != types.OutputBasic {
		return false
	}
	if _, reserved := h.st.locked[od.OutputID]; reserved {
		return false
	}
	conditioned := slices.ContainsFunc(claimConditions, func(k types.UnlockConditionKind) bool {
		_, ok := od.Output.UnlockCondition(k)
		return ok
	})
	if !conditioned {
		return false
	}
	owner, ok := od.Output.OwnerAt(now)
	if !ok {
		return false
	}
	_, mine := owned[owner]
	return mine
}

// OutputsToClaim lists unspent basic outputs with a storage deposit return,
// expiration or timelock condition that the account can unlock now. This
// includes tokens sent to the account and expired sends returning to it.
func (h *Handle) OutputsToClaim() []types.OutputID {
	now := uint32(h.deps.Now().Unix())
	h.mu.RLock()
	defer h.mu.RUnlock()
	owned := h.st.addresses()
	var ids []types.OutputID
	for _, od := range h.st.outputs {
		if h.claimableLocked(od, owned, now) {
			ids = append(ids, od.OutputID)
		}
	}
	slices.SortFunc(ids, func(a, b types.OutputID) int { return a.Compare(b) })
	return ids
}

// ClaimOutputs consumes the given claimable outputs. Storage deposits owed
// to return addresses are paid back, and the rest, native tokens included,
// goes to a remainder owned by the account. Other inputs are added when the
// claimed outputs cannot fund the remainder deposit themselves.
func (h *Handle) ClaimOutputs(ctx context.Context, ids []types.OutputID, opts *TransactionOptions) (*Transaction, error) {
	return h.send(ctx, opts, func() (*tx.Prepared, error) { return h.PrepareClaimOutputs(ctx, ids, opts) })
}

// PrepareClaimOutputs prepares the transaction of ClaimOutputs.
func (h *Handle) PrepareClaimOutputs(ctx context.Context, ids []types.OutputID, opts *TransactionOptions) (*tx.Prepared, error) {
	const op = "account.PrepareClaimOutputs"
	if len(ids) == 0 {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: no outputs to claim", ErrInvalidParams))
	}
	now := uint32(h.deps.Now().Unix())

	h.mu.RLock()
	owned := h.st.addresses()
	for _, id := range ids {
		od, ok := h.st.outputs[id]
		if !ok || !h.claimableLocked(od, owned, now) {
			h.mu.RUnlock()
			return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %s", ErrNotClaimable, id))
		}
	}
	h.mu.RUnlock()

	return h.PrepareTransaction(ctx, nil, withRequired(opts, ids...))
}

// ClaimAll claims every output returned by OutputsToClaim. It returns nil
// when there is nothing to claim.
func (h *Handle) ClaimAll(ctx context.Context, opts *TransactionOptions) (*Transaction, error) {
	ids := h.OutputsToClaim()
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > tx.MaxInputs {
		ids = ids[:tx.MaxInputs]
	}
	return h.ClaimOutputs(ctx, ids, opts)
}
