package account

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/secret"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// GenerateAddresses derives n new addresses on the public chain, or the
// internal chain when internal is set, and persists them.
//
// Generation is serialised per account; the account lock is only taken to
// read the next index and to append the results.
func (h *Handle) GenerateAddresses(ctx context.Context, n int, internal bool) ([]AddressData, error) {
	const op = "account.GenerateAddresses"
	if n <= 0 {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: address count %d", ErrInvalidParams, n))
	}
	h.genMu.Lock()
	defer h.genMu.Unlock()

	h.mu.RLock()
	account := h.st.details.Index
	next := uint32(len(h.st.details.PublicAddresses))
	if internal {
		next = uint32(len(h.st.details.InternalAddresses))
	}
	h.mu.RUnlock()

	confirm := false
	if c, ok := h.deps.Secret.(secret.Confirmer); ok && c.ConfirmationMode() != secret.ConfirmNone {
		confirm = true
	}

	generated := make([]AddressData, 0, n)
	for i := range uint32(n) {
		chain := tx.Chain{Account: account, Internal: internal, Index: next + i}
		addr, err := h.deps.Secret.GenerateAddress(ctx, chain.Account, chain.Index, chain.Internal)
		if err != nil {
			return nil, errs.E(errs.KindSecretManager, op, err)
		}
		data := AddressData{Address: addr, Bech32: addr.Bech32(h.deps.HRP), Chain: chain}
		if confirm {
			h.emit(event.KindLedgerAddressGeneration, event.AddressData{Address: data.Bech32})
		}
		generated = append(generated, data)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if internal {
		h.st.details.InternalAddresses = append(h.st.details.InternalAddresses, generated...)
	} else {
		h.st.details.PublicAddresses = append(h.st.details.PublicAddresses, generated...)
	}
	if err := h.persistLocked(ctx); err != nil {
		return nil, err
	}
	h.logger.Debug("addresses generated", "count", n, "internal", internal)
	return generated, nil
}

// firstAddress returns the first public address of the account.
func (h *Handle) firstAddress() (types.Address, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.st.details.PublicAddresses) == 0 {
		return types.Address{}, ErrNoAddresses
	}
	return h.st.details.PublicAddresses[0].Address, nil
}

// parseAddress decodes a bech32 address of the configured network.
func (h *Handle) parseAddress(s string) (types.Address, error) {
	return types.ParseBech32ForNetwork(s, h.deps.HRP)
}
