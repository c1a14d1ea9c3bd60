package account

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// DefaultExpiration is how long a recipient of native tokens has to claim
// them before the storage deposit and tokens return to the sender.
const DefaultExpiration = 24 * time.Hour

// AmountParams pays Amount base coin to a bech32 address.
type AmountParams struct {
	Address string
	Amount  uint64
}

// NativeTokensParams sends native tokens to a bech32 address. The storage
// deposit is lent to the recipient and returns to ReturnAddress (default:
// the first account address) once claimed or after Expiration.
type NativeTokensParams struct {
	Address       string
	NativeTokens  []types.NativeToken
	ReturnAddress string
	Expiration    time.Duration
}

// NftParams transfers an NFT held by the account.
type NftParams struct {
	Address string
	NftID   types.NftID
}

// AliasParams creates an alias controlled by Address (default: the first
// account address).
type AliasParams struct {
	Address       string
	StateMetadata []byte
}

// MintNftParams describes one NFT to mint.
type MintNftParams struct {
	// Address receives the NFT; empty means the first account address.
	Address           string
	Issuer            string
	Metadata          []byte
	Tag               []byte
	ImmutableMetadata []byte
}

// SendAmount sends base coin to each destination in one transaction.
func (h *Handle) SendAmount(ctx context.Context, params []AmountParams, opts *TransactionOptions) (*Transaction, error) {
	return h.send(ctx, opts, func() (*tx.Prepared, error) { return h.PrepareSendAmount(ctx, params, opts) })
}

// PrepareSendAmount builds the outputs of SendAmount and prepares them.
// Every address is validated against the configured network before the
// node is contacted.
func (h *Handle) PrepareSendAmount(ctx context.Context, params []AmountParams, opts *TransactionOptions) (*tx.Prepared, error) {
	const op = "account.PrepareSendAmount"
	if len(params) == 0 {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: no destinations", ErrInvalidParams))
	}
	addrs := make([]types.Address, len(params))
	for i, p := range params {
		addr, err := h.parseAddress(p.Address)
		if err != nil {
			return nil, wrap(op, err)
		}
		addrs[i] = addr
	}

	outputs := make([]*types.Output, len(params))
	for i, p := range params {
		outputs[i] = types.NewBasicOutput(p.Amount, addrs[i])
	}
	return h.PrepareTransaction(ctx, outputs, opts)
}

// SendNativeTokens sends native tokens, lending each recipient the storage
// deposit of the output that carries them.
func (h *Handle) SendNativeTokens(ctx context.Context, params []NativeTokensParams, opts *TransactionOptions) (*Transaction, error) {
	return h.send(ctx, opts, func() (*tx.Prepared, error) { return h.PrepareSendNativeTokens(ctx, params, opts) })
}

// PrepareSendNativeTokens builds the outputs of SendNativeTokens and
// prepares them.
func (h *Handle) PrepareSendNativeTokens(ctx context.Context, params []NativeTokensParams, opts *TransactionOptions) (*tx.Prepared, error) {
	const op = "account.PrepareSendNativeTokens"
	if len(params) == 0 {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: no destinations", ErrInvalidParams))
	}
	type resolved struct{ to, back types.Address }
	addrs := make([]resolved, len(params))
	for i, p := range params {
		to, err := h.parseAddress(p.Address)
		if err != nil {
			return nil, wrap(op, err)
		}
		back, err := h.addressOrDefault(p.ReturnAddress)
		if err != nil {
			return nil, wrap(op, err)
		}
		if len(p.NativeTokens) == 0 {
			return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: destination %d has no native tokens", ErrInvalidParams, i))
		}
		addrs[i] = resolved{to: to, back: back}
	}

	rent, err := h.deps.Client.RentStructure(ctx)
	if err != nil {
		return nil, errs.E(errs.KindNetwork, op, err)
	}
	now := h.deps.Now()
	outputs := make([]*types.Output, len(params))
	for i, p := range params {
		expiration := p.Expiration
		if expiration <= 0 {
			expiration = DefaultExpiration
		}
		tokens := make([]types.NativeToken, len(p.NativeTokens))
		for j, nt := range p.NativeTokens {
			tokens[j] = types.NativeToken{ID: nt.ID, Amount: nt.Amount}
		}
		out := &types.Output{
			Kind:         types.OutputBasic,
			NativeTokens: tokens,
			UnlockConditions: []types.UnlockCondition{
				{Kind: types.UnlockAddress, Address: addrs[i].to},
				{Kind: types.UnlockStorageDepositReturn, Address: addrs[i].back},
				{Kind: types.UnlockExpiration, Address: addrs[i].back, UnixTime: uint32(now.Add(expiration).Unix())},
			},
		}
		// Fixed-width amounts: the deposit does not depend on the values.
		deposit := rent.MinStorageDeposit(out)
		out.Amount = deposit
		out.UnlockConditions[1].Amount = deposit
		outputs[i] = out
	}
	return h.PrepareTransaction(ctx, outputs, opts)
}

// SendNft transfers NFTs held by the account.
func (h *Handle) SendNft(ctx context.Context, params []NftParams, opts *TransactionOptions) (*Transaction, error) {
	return h.send(ctx, opts, func() (*tx.Prepared, error) { return h.PrepareSendNft(ctx, params, opts) })
}

// PrepareSendNft moves each NFT into a new output owned by the recipient.
func (h *Handle) PrepareSendNft(ctx context.Context, params []NftParams, opts *TransactionOptions) (*tx.Prepared, error) {
	const op = "account.PrepareSendNft"
	if len(params) == 0 {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: no nfts", ErrInvalidParams))
	}
	addrs := make([]types.Address, len(params))
	for i, p := range params {
		addr, err := h.parseAddress(p.Address)
		if err != nil {
			return nil, wrap(op, err)
		}
		addrs[i] = addr
	}

	outputs := make([]*types.Output, len(params))
	var required []types.OutputID
	for i, p := range params {
		held, err := h.findNft(p.NftID)
		if err != nil {
			return nil, wrap(op, err)
		}
		out := held.Output.Clone()
		out.NftID = p.NftID
		out.UnlockConditions = []types.UnlockCondition{{Kind: types.UnlockAddress, Address: addrs[i]}}
		outputs[i] = out
		required = append(required, held.OutputID)
	}
	return h.PrepareTransaction(ctx, outputs, withRequired(opts, required...))
}

// SendOutputs sends caller-built outputs after checking their deposits.
func (h *Handle) SendOutputs(ctx context.Context, outputs []*types.Output, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.SendOutputs"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		if len(outputs) == 0 {
			return nil, errs.E(errs.KindValidation, op, tx.ErrNoOutputs)
		}
		return h.PrepareTransaction(ctx, outputs, opts)
	})
}

// CreateAlias creates a new alias output. Its id is derived from the id of
// the output once the transaction is accepted.
func (h *Handle) CreateAlias(ctx context.Context, params AliasParams, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.CreateAlias"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		controller, err := h.addressOrDefault(params.Address)
		if err != nil {
			return nil, wrap(op, err)
		}
		out := &types.Output{
			Kind:          types.OutputAlias,
			StateMetadata: params.StateMetadata,
			UnlockConditions: []types.UnlockCondition{
				{Kind: types.UnlockStateController, Address: controller},
				{Kind: types.UnlockGovernor, Address: controller},
			},
		}
		if err := h.fundDeposits(ctx, out); err != nil {
			return nil, wrap(op, err)
		}
		return h.PrepareTransaction(ctx, []*types.Output{out}, opts)
	})
}

// MintNfts mints one NFT per entry.
func (h *Handle) MintNfts(ctx context.Context, params []MintNftParams, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.MintNfts"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		if len(params) == 0 {
			return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: no nfts", ErrInvalidParams))
		}
		outputs := make([]*types.Output, len(params))
		for i, p := range params {
			owner, err := h.addressOrDefault(p.Address)
			if err != nil {
				return nil, wrap(op, err)
			}
			out := &types.Output{
				Kind:             types.OutputNft,
				UnlockConditions: []types.UnlockCondition{{Kind: types.UnlockAddress, Address: owner}},
			}
			if p.Issuer != "" {
				issuer, err := h.parseAddress(p.Issuer)
				if err != nil {
					return nil, wrap(op, err)
				}
				out.ImmutableFeatures = append(out.ImmutableFeatures, types.Feature{Kind: types.FeatureIssuer, Address: issuer})
			}
			if len(p.ImmutableMetadata) > 0 {
				out.ImmutableFeatures = append(out.ImmutableFeatures, types.Feature{Kind: types.FeatureMetadata, Data: p.ImmutableMetadata})
			}
			if len(p.Metadata) > 0 {
				out.Features = append(out.Features, types.Feature{Kind: types.FeatureMetadata, Data: p.Metadata})
			}
			if len(p.Tag) > 0 {
				out.Features = append(out.Features, types.Feature{Kind: types.FeatureTag, Data: p.Tag})
			}
			outputs[i] = out
		}
		if err := h.fundDeposits(ctx, outputs...); err != nil {
			return nil, wrap(op, err)
		}
		return h.PrepareTransaction(ctx, outputs, opts)
	})
}

// BurnNft consumes an NFT without recreating it. Its deposit and tokens
// go to the remainder.
func (h *Handle) BurnNft(ctx context.Context, id types.NftID, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.BurnNft"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		held, err := h.findNft(id)
		if err != nil {
			return nil, wrap(op, err)
		}
		return h.PrepareTransaction(ctx, nil, withRequired(opts, held.OutputID))
	})
}

// DestroyAlias consumes an alias without recreating it.
func (h *Handle) DestroyAlias(ctx context.Context, id types.AliasID, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.DestroyAlias"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		held, err := h.findAlias(id)
		if err != nil {
			return nil, wrap(op, err)
		}
		return h.PrepareTransaction(ctx, nil, withRequired(opts, held.OutputID))
	})
}

// DestroyFoundry consumes a foundry whose tokens have all been melted. The
// controlling alias transitions to its next state.
func (h *Handle) DestroyFoundry(ctx context.Context, id types.FoundryID, opts *TransactionOptions) (*Transaction, error) {
	const op = "account.DestroyFoundry"
	return h.send(ctx, opts, func() (*tx.Prepared, error) {
		foundry, ok := h.findUnspent(func(od *OutputData) bool {
			fid, ok := od.Output.FoundryID()
			return ok && fid == id
		})
		if !ok {
			return nil, errs.E(errs.KindInsufficientResource, op, fmt.Errorf("%w: %s", ErrFoundryNotFound, id))
		}
		if scheme := foundry.Output.TokenScheme; scheme != nil && scheme.CirculatingSupply().Sign() != 0 {
			return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %s", ErrFoundryNotEmpty, id))
		}
		alias, err := h.findAlias(types.FoundryAlias(id))
		if err != nil {
			return nil, wrap(op, err)
		}
		next := alias.Output.Clone()
		next.AliasID = alias.Output.AliasID.OrFromOutputID(alias.OutputID)
		next.StateIndex++
		return h.PrepareTransaction(ctx, []*types.Output{next}, withRequired(opts, alias.OutputID, foundry.OutputID))
	})
}

func (h *Handle) send(ctx context.Context, opts *TransactionOptions, prepare func() (*tx.Prepared, error)) (*Transaction, error) {
	prepared, err := prepare()
	if err != nil {
		return nil, err
	}
	return h.SignAndSubmit(ctx, prepared, opts.note())
}

// validateOutputs checks outputs against the token supply and rejects any
// that cannot pay for their own storage.
func validateOutputs(outputs []*types.Output, rent types.RentStructure, supply uint64) error {
	for i, out := range outputs {
		if out == nil {
			return fmt.Errorf("%w: output %d", tx.ErrNilParam, i)
		}
		if err := out.Validate(supply); err != nil {
			return err
		}
		if need := rent.MinStorageDeposit(out); out.Amount < need {
			return fmt.Errorf("%w: output %d holds %d, needs %d", tx.ErrAmountBelowMinimumStorageDeposit, i, out.Amount, need)
		}
	}
	return nil
}

// fundDeposits sets the amount of each output to its storage deposit.
func (h *Handle) fundDeposits(ctx context.Context, outputs ...*types.Output) error {
	rent, err := h.deps.Client.RentStructure(ctx)
	if err != nil {
		return errs.E(errs.KindNetwork, "account.fundDeposits", err)
	}
	for _, out := range outputs {
		out.Amount = rent.MinStorageDeposit(out)
	}
	return nil
}

// addressOrDefault parses s, or returns the first account address when s
// is empty.
func (h *Handle) addressOrDefault(s string) (types.Address, error) {
	if s == "" {
		return h.firstAddress()
	}
	return h.parseAddress(s)
}

// findUnspent returns the first unspent, unreserved output matching keep,
// in output id order.
func (h *Handle) findUnspent(keep func(*OutputData) bool) (OutputData, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]types.OutputID, 0, len(h.st.outputs))
	for id := range h.st.outputs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b types.OutputID) int { return a.Compare(b) })
	for _, id := range ids {
		od := h.st.outputs[id]
		if od.Spent {
			continue
		}
		if _, reserved := h.st.locked[id]; reserved {
			continue
		}
		if keep(od) {
			return *od, true
		}
	}
	return OutputData{}, false
}

func (h *Handle) findNft(id types.NftID) (OutputData, error) {
	od, ok := h.findUnspent(func(od *OutputData) bool {
		return od.Output.Kind == types.OutputNft && od.Output.NftID.OrFromOutputID(od.OutputID) == id
	})
	if !ok {
		return OutputData{}, fmt.Errorf("%w: %s", ErrNftNotFound, id)
	}
	return od, nil
}

func (h *Handle) findAlias(id types.AliasID) (OutputData, error) {
	od, ok := h.findUnspent(func(od *OutputData) bool {
		return od.Output.Kind == types.OutputAlias && od.Output.AliasID.OrFromOutputID(od.OutputID) == id
	})
	if !ok {
		return OutputData{}, fmt.Errorf("%w: %s", ErrAliasNotFound, id)
	}
	return od, nil
}

// withRequired returns a copy of opts with ids added to MandatoryInputs.
func withRequired(opts *TransactionOptions, ids ...types.OutputID) *TransactionOptions {
	var c TransactionOptions
	if opts != nil {
		c = *opts
	}
	c.MandatoryInputs = append(slices.Clone(c.MandatoryInputs), ids...)
	return &c
}

