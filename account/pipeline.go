package account

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/pow"
	"github.com/bitfsorg/libwallet-go/secret"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// TransactionOptions tune how a transaction is prepared.
type TransactionOptions struct {
	// RemainderStrategy defaults to tx.RemainderReuseAddress.
	RemainderStrategy tx.RemainderStrategy
	// RemainderAddress is the bech32 change address for tx.RemainderCustom.
	RemainderAddress string
	// MandatoryInputs are always consumed, in addition to automatic selection.
	MandatoryInputs []types.OutputID
	// CustomInputs replace automatic selection entirely.
	CustomInputs []types.OutputID
	TaggedData   *types.TaggedData
	// Note is stored with the transaction record.
	Note string
}

func (o *TransactionOptions) note() string {
	if o == nil {
		return ""
	}
	return o.Note
}

// SendTransaction prepares, signs and submits a transaction creating outputs.
func (h *Handle) SendTransaction(ctx context.Context, outputs []*types.Output, opts *TransactionOptions) (*Transaction, error) {
	prepared, err := h.PrepareTransaction(ctx, outputs, opts)
	if err != nil {
		return nil, err
	}
	return h.SignAndSubmit(ctx, prepared, opts.note())
}

// PrepareTransaction selects inputs for outputs and builds the unsigned
// transaction, adding a remainder when the inputs overshoot. Every output
// is checked against the token supply and its storage deposit first.
//
// The account is only read-locked while the candidate outputs are copied.
// Nothing is reserved: a concurrent send may pick the same inputs, and the
// loser is rejected by SubmitAndStore.
func (h *Handle) PrepareTransaction(ctx context.Context, outputs []*types.Output, opts *TransactionOptions) (*tx.Prepared, error) {
	const op = "account.PrepareTransaction"
	if opts == nil {
		opts = &TransactionOptions{}
	}
	var custom types.Address
	if opts.RemainderStrategy == tx.RemainderCustom {
		addr, err := h.parseAddress(opts.RemainderAddress)
		if err != nil {
			return nil, wrap(op, err)
		}
		custom = addr
	}

	h.progress(event.Progress{Step: event.StepSelectingInputs})

	rent, err := h.deps.Client.RentStructure(ctx)
	if err != nil {
		return nil, errs.E(errs.KindNetwork, op, err)
	}
	networkID, err := h.deps.Client.NetworkID(ctx)
	if err != nil {
		return nil, errs.E(errs.KindNetwork, op, err)
	}
	supply, err := h.deps.Client.TokenSupply(ctx)
	if err != nil {
		return nil, errs.E(errs.KindNetwork, op, err)
	}
	if err := validateOutputs(outputs, rent, supply); err != nil {
		return nil, wrap(op, err)
	}
	amount, tokens, err := tx.Totals(outputs)
	if err != nil {
		return nil, wrap(op, err)
	}
	now := h.deps.Now()

	h.mu.RLock()
	available, exclude := h.st.available()
	owned := h.st.addresses()
	h.mu.RUnlock()

	var inputs []tx.InputSigningData
	if len(opts.CustomInputs) > 0 {
		inputs, err = pickInputs(available, opts.CustomInputs)
	} else {
		inputs, err = tx.SelectInputs(available, tx.Target{
			Amount:       amount,
			NativeTokens: tokens,
			Required:     opts.MandatoryInputs,
			Exclude:      exclude,
			Rent:         rent,
			Now:          uint32(now.Unix()),
		})
	}
	if err != nil {
		return nil, wrap(op, err)
	}

	params := tx.BuildParams{
		NetworkID: networkID,
		Inputs:    inputs,
		Outputs:   outputs,
		Rent:      rent,
		Payload:   opts.TaggedData,
		Now:       now,
	}
	owed := tx.StorageDepositReturns(inputs, uint32(now.Unix()))
	needsRemainder, err := tx.NeedsRemainder(inputs, slices.Concat(outputs, owed))
	if err != nil {
		return nil, wrap(op, err)
	}
	if needsRemainder {
		addr, chain, err := h.remainderAddress(ctx, opts.RemainderStrategy, custom, inputs, owned, uint32(now.Unix()))
		if err != nil {
			return nil, wrap(op, err)
		}
		params.RemainderAddress, params.RemainderChain = addr, chain
		h.progress(event.Progress{
			Step:    event.StepGeneratingRemainderDepositAddress,
			Address: addr.Bech32(h.deps.HRP),
		})
	}

	prepared, err := tx.Build(params)
	if err != nil {
		return nil, wrap(op, err)
	}
	h.logger.Debug("transaction prepared",
		"inputs", len(prepared.Inputs),
		"outputs", len(prepared.Essence.Outputs),
		"essence", prepared.Essence.HashHex(),
	)
	return prepared, nil
}

// pickInputs returns exactly the requested inputs.
func pickInputs(available []tx.InputSigningData, ids []types.OutputID) ([]tx.InputSigningData, error) {
	byID := make(map[types.OutputID]tx.InputSigningData, len(available))
	for _, in := range available {
		byID[in.OutputID] = in
	}
	inputs := make([]tx.InputSigningData, 0, len(ids))
	seen := make(map[types.OutputID]struct{}, len(ids))
	for _, id := range ids {
		in, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s is unknown, spent or reserved", tx.ErrRequiredInputNotFound, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (h *Handle) remainderAddress(
	ctx context.Context,
	strategy tx.RemainderStrategy,
	custom types.Address,
	inputs []tx.InputSigningData,
	owned map[types.Address]AddressData,
	now uint32,
) (types.Address, *tx.Chain, error) {
	switch strategy {
	case tx.RemainderCustom:
		if a, ok := owned[custom]; ok {
			chain := a.Chain
			return custom, &chain, nil
		}
		return custom, nil, nil
	case tx.RemainderChangeAddress:
		generated, err := h.GenerateAddresses(ctx, 1, true)
		if err != nil {
			return types.Address{}, nil, err
		}
		chain := generated[0].Chain
		return generated[0].Address, &chain, nil
	case tx.RemainderReuseAddress, "":
		// The address that unlocks an input now; past an expiration that is
		// the return address, not the recipient.
		for _, in := range inputs {
			owner, ok := in.Output.OwnerAt(now)
			if !ok || owner.Kind != types.AddressKey {
				continue
			}
			if a, mine := owned[owner]; mine {
				chain := a.Chain
				return owner, &chain, nil
			}
		}
		addr, err := h.firstAddress()
		if err != nil {
			return types.Address{}, nil, err
		}
		chain := owned[addr].Chain
		return addr, &chain, nil
	default:
		return types.Address{}, nil, fmt.Errorf("%w: remainder strategy %q", ErrInvalidParams, strategy)
	}
}

// SignTransaction asks the secret manager for unlocks. A manager that
// displays the transaction first is announced with a progress event
// carrying what it will show.
func (h *Handle) SignTransaction(ctx context.Context, p *tx.Prepared) (*tx.Signed, error) {
	const op = "account.SignTransaction"
	if p == nil {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: prepared transaction", tx.ErrNilParam))
	}
	if c, ok := h.deps.Secret.(secret.Confirmer); ok {
		switch c.ConfirmationMode() {
		case secret.ConfirmEssenceHash:
			h.progress(event.Progress{Step: event.StepPreparedTransactionEssenceHash, EssenceHash: p.Essence.HashHex()})
		case secret.ConfirmFullTransaction:
			essence := p.Essence
			h.progress(event.Progress{Step: event.StepPreparedTransaction, Essence: &essence})
		}
	}

	h.progress(event.Progress{Step: event.StepSigningTransaction})
	unlocks, err := h.deps.Secret.SignTransaction(ctx, p)
	if err != nil {
		return nil, errs.E(errs.KindSecretManager, op, err)
	}
	signed, err := tx.NewSigned(p, unlocks)
	if err != nil {
		return nil, errs.E(errs.KindSecretManager, op, err)
	}
	return signed, nil
}

// SignAndSubmit signs p and submits it.
func (h *Handle) SignAndSubmit(ctx context.Context, p *tx.Prepared, note string) (*Transaction, error) {
	signed, err := h.SignTransaction(ctx, p)
	if err != nil {
		return nil, err
	}
	return h.SubmitAndStore(ctx, signed, note)
}

// SubmitAndStore broadcasts a signed transaction and records it.
//
// The inputs are reserved under the write lock before anything is sent.
// If one of them was spent or reserved since preparation the call fails
// with ErrStaleInputState and nothing reaches the node. A failed
// submission releases the reservation and may be retried.
//
// Once the block is out the transaction is tracked in memory even when
// persisting it fails: the record is returned together with the storage
// error, and the next successful persist writes it.
func (h *Handle) SubmitAndStore(ctx context.Context, signed *tx.Signed, note string) (*Transaction, error) {
	const op = "account.SubmitAndStore"
	if signed == nil || signed.Payload == nil {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: signed transaction", tx.ErrNilParam))
	}
	txID := signed.ID()

	h.mu.Lock()
	err := h.reserveLocked(txID, signed.Inputs)
	h.mu.Unlock()
	if err != nil {
		h.deps.Metrics.staleInc()
		h.logger.Warn("inputs changed since preparation", "tx", txID.String(), "error", err)
		return nil, errs.E(errs.KindStaleInputState, op, err)
	}

	blockID, err := h.submitBlock(ctx, signed.Payload)
	if err != nil {
		h.mu.Lock()
		h.releaseLocked(txID, signed.Inputs)
		h.mu.Unlock()
		h.logger.Warn("transaction submission failed", "tx", txID.String(), "error", err)
		return nil, err
	}

	// The block is out; recording it must not be abandoned on cancellation.
	commitCtx := context.WithoutCancel(ctx)
	now := h.deps.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	record, err := h.commitLocked(commitCtx, txID, signed, blockID, note, now)
	if record == nil {
		return nil, err
	}
	h.deps.Metrics.submittedInc()
	if err != nil {
		return record.clone(), err
	}
	h.logger.Info("transaction submitted", "tx", txID.String(), "block", blockID.String())
	return record.clone(), nil
}

// reserveLocked marks inputs as held by txID. Nothing is changed when any
// input is unknown, spent or already reserved.
func (h *Handle) reserveLocked(txID types.TransactionID, inputs []tx.InputSigningData) error {
	for _, in := range inputs {
		out, ok := h.st.outputs[in.OutputID]
		switch {
		case !ok:
			return fmt.Errorf("%w: %s is not an output of the account", ErrStaleInputState, in.OutputID)
		case out.Spent:
			return fmt.Errorf("%w: %s is spent", ErrStaleInputState, in.OutputID)
		}
		if holder, reserved := h.st.locked[in.OutputID]; reserved {
			return fmt.Errorf("%w: %s is reserved by %s", ErrStaleInputState, in.OutputID, holder)
		}
	}
	for _, in := range inputs {
		h.st.locked[in.OutputID] = txID
	}
	return nil
}

func (h *Handle) releaseLocked(txID types.TransactionID, inputs []tx.InputSigningData) {
	for _, in := range inputs {
		if h.st.locked[in.OutputID] == txID {
			delete(h.st.locked, in.OutputID)
		}
	}
}

// submitBlock wraps payload in a block on fresh tips and sends it. No lock
// is held.
func (h *Handle) submitBlock(ctx context.Context, payload *types.TransactionPayload) (types.BlockID, error) {
	const op = "account.submitBlock"
	tips, err := h.deps.Client.Tips(ctx)
	if err != nil {
		return types.BlockID{}, errs.E(errs.KindNetwork, op, err)
	}
	block := &types.Block{
		ProtocolVersion: types.ProtocolVersion,
		Parents:         tips,
		Payload:         payload,
	}

	if h.deps.LocalPoW {
		h.progress(event.Progress{Step: event.StepPerformingPow})
		target, err := h.deps.Client.MinPoWScore(ctx)
		if err != nil {
			return types.BlockID{}, errs.E(errs.KindNetwork, op, err)
		}
		if target > 0 {
			start := time.Now()
			if err := pow.SolveBlock(ctx, block, target, h.deps.PoWWorkers); err != nil {
				return types.BlockID{}, errs.E(errs.KindUnknown, op, err)
			}
			h.logger.Debug("proof-of-work solved", "target", target, "elapsed", time.Since(start))
		}
	}

	h.progress(event.Progress{Step: event.StepBroadcasting})
	id, err := h.deps.Client.SubmitBlock(ctx, block)
	if err != nil {
		return types.BlockID{}, errs.E(errs.KindNetwork, op, err)
	}
	return id, nil
}

// commitLocked records a submitted transaction: inputs become spent and
// stay reserved until inclusion, outputs paid to the account are added.
// A storage failure returns the record along with the error.
func (h *Handle) commitLocked(
	ctx context.Context,
	txID types.TransactionID,
	signed *tx.Signed,
	blockID types.BlockID,
	note string,
	now time.Time,
) (*Transaction, error) {
	for _, in := range signed.Inputs {
		if out, ok := h.st.outputs[in.OutputID]; ok {
			out.Spent = true
		}
	}

	owned := h.st.addresses()
	var created []types.OutputID
	for i, out := range signed.Payload.Essence.Outputs {
		owner, ok := out.Owner()
		if !ok {
			continue
		}
		addr, mine := owned[owner]
		if !mine {
			continue
		}
		id := types.NewOutputID(txID, uint16(i))
		chain := addr.Chain
		h.st.outputs[id] = &OutputData{
			OutputID:      id,
			Output:        out,
			Address:       owner,
			Chain:         &chain,
			TransactionID: txID,
			BookedAt:      uint32(now.Unix()),
		}
		h.st.markUsed(owner)
		created = append(created, id)
	}

	lc := tx.NewLifecycle(tx.StatePrepared)
	for _, evt := range []string{tx.EventSign, tx.EventSubmit} {
		if err := lc.Fire(ctx, evt); err != nil {
			return nil, wrap("account.commit", err)
		}
	}
	record := &Transaction{
		ID:          txID,
		Payload:     signed.Payload,
		Inputs:      signed.Inputs,
		Created:     created,
		BlockID:     blockID,
		State:       lc.State(),
		Inclusion:   types.InclusionPending,
		Note:        note,
		CreatedAt:   now,
		SubmittedAt: now,
	}
	h.st.transactions[txID] = record
	h.st.pending[txID] = struct{}{}

	if err := h.persistLocked(ctx); err != nil {
		h.logger.Error("submitted transaction not persisted", "tx", txID.String(), "error", err)
		return record, err
	}
	return record, nil
}
