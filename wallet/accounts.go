package wallet

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/bitfsorg/libwallet-go/account"
	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/storage"
)

// CreateAccount creates the next account and its first public address.
// An empty alias defaults to "Account <index>".
func (w *Wallet) CreateAccount(ctx context.Context, alias string) (*account.Handle, error) {
	const op = "wallet.CreateAccount"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(op); err != nil {
		return nil, err
	}

	next := uint32(len(w.accounts))
	if next >= hardened {
		return nil, errs.E(errs.KindValidation, op, ErrAccountLimit)
	}
	if alias == "" {
		alias = "Account " + strconv.FormatUint(uint64(next), 10)
	}
	if w.aliasTakenLocked(alias, nil) {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %q", ErrAccountAliasExists, alias))
	}

	h, err := account.New(ctx, account.Details{Index: next, Alias: alias, CoinType: w.coinType}, w.deps)
	if err != nil {
		return nil, err
	}
	if _, err := h.GenerateAddresses(ctx, 1, false); err != nil {
		w.discardRecords(ctx, next)
		return nil, err
	}

	w.accounts = append(w.accounts, h)
	if err := w.saveIndexesLocked(ctx); err != nil {
		w.accounts = w.accounts[:next]
		w.discardRecords(ctx, next)
		return nil, err
	}
	w.logger.Info("account created", "account", next, "alias", alias)
	return h, nil
}

// Account finds an account by alias, or by decimal index when no alias
// matches.
func (w *Wallet) Account(aliasOrIndex string) (*account.Handle, error) {
	const op = "wallet.Account"
	w.mu.RLock()
	defer w.mu.RUnlock()
	if err := w.checkOpenLocked(op); err != nil {
		return nil, err
	}
	h, ok := w.findLocked(aliasOrIndex)
	if !ok {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %q", ErrAccountNotFound, aliasOrIndex))
	}
	return h, nil
}

// AccountByIndex returns the account with index i.
func (w *Wallet) AccountByIndex(i uint32) (*account.Handle, error) {
	const op = "wallet.AccountByIndex"
	w.mu.RLock()
	defer w.mu.RUnlock()
	if err := w.checkOpenLocked(op); err != nil {
		return nil, err
	}
	if uint64(i) >= uint64(len(w.accounts)) {
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: index %d", ErrAccountNotFound, i))
	}
	return w.accounts[i], nil
}

// Accounts returns every account in index order.
func (w *Wallet) Accounts() []*account.Handle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.accounts)
}

// SetAlias renames an account. The new alias must not belong to another
// account.
func (w *Wallet) SetAlias(ctx context.Context, aliasOrIndex, alias string) error {
	const op = "wallet.SetAlias"
	if alias == "" {
		return errs.E(errs.KindValidation, op, fmt.Errorf("%w: empty alias", account.ErrInvalidParams))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(op); err != nil {
		return err
	}
	h, ok := w.findLocked(aliasOrIndex)
	if !ok {
		return errs.E(errs.KindValidation, op, fmt.Errorf("%w: %q", ErrAccountNotFound, aliasOrIndex))
	}
	if w.aliasTakenLocked(alias, h) {
		return errs.E(errs.KindValidation, op, fmt.Errorf("%w: %q", ErrAccountAliasExists, alias))
	}
	return h.SetAlias(ctx, alias)
}

// RemoveLatestAccount deletes the account with the highest index. Only an
// account that never held outputs or sent transactions can be removed, so
// indexes are never reused for keys that saw funds.
func (w *Wallet) RemoveLatestAccount(ctx context.Context) error {
	const op = "wallet.RemoveLatestAccount"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(op); err != nil {
		return err
	}
	if len(w.accounts) == 0 {
		return errs.E(errs.KindValidation, op, ErrNoAccounts)
	}
	last := len(w.accounts) - 1
	latest := w.accounts[last]
	if latest.HasHistory() {
		return errs.E(errs.KindValidation, op, fmt.Errorf("%w: account %d", ErrAccountHasHistory, latest.Index()))
	}

	w.accounts = w.accounts[:last]
	if err := w.saveIndexesLocked(ctx); err != nil {
		w.accounts = append(w.accounts, latest)
		return err
	}
	w.discardRecords(ctx, latest.Index())
	w.logger.Info("account removed", "account", latest.Index(), "alias", latest.Alias())
	return nil
}

// discardRecords removes the records of an account that is no longer
// listed. Failures leave unreachable records behind and are only logged.
func (w *Wallet) discardRecords(ctx context.Context, index uint32) {
	for _, key := range storage.AccountRecordKeys(index) {
		if err := w.store.Remove(ctx, key); err != nil {
			w.logger.Warn("account record not removed", "key", key, "error", err)
		}
	}
}

func (w *Wallet) findLocked(aliasOrIndex string) (*account.Handle, bool) {
	for _, h := range w.accounts {
		if h.Alias() == aliasOrIndex {
			return h, true
		}
	}
	i, err := strconv.ParseUint(aliasOrIndex, 10, 32)
	if err != nil || i >= uint64(len(w.accounts)) {
		return nil, false
	}
	return w.accounts[i], true
}

func (w *Wallet) aliasTakenLocked(alias string, except *account.Handle) bool {
	for _, h := range w.accounts {
		if h != except && h.Alias() == alias {
			return true
		}
	}
	return false
}
