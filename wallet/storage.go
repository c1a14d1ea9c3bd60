package wallet

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwallet-go/account"
	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/storage"
)

// syncConcurrency bounds how many accounts SyncAll refreshes at once.
const syncConcurrency = 4

// SyncAll syncs every account and returns the balances in index order.
func (w *Wallet) SyncAll(ctx context.Context) ([]account.Balance, error) {
	const op = "wallet.SyncAll"
	w.mu.RLock()
	if err := w.checkOpenLocked(op); err != nil {
		w.mu.RUnlock()
		return nil, err
	}
	accounts := append([]*account.Handle(nil), w.accounts...)
	w.mu.RUnlock()

	balances := make([]account.Balance, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, h := range accounts {
		g.Go(func() error {
			b, err := h.Sync(gctx)
			if err != nil {
				return err
			}
			balances[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// SetStoragePassword encrypts every record with a key derived from
// password. An already encrypted store is re-encrypted under the new key.
func (w *Wallet) SetStoragePassword(ctx context.Context, password string) error {
	const op = "wallet.SetStoragePassword"
	if password == "" {
		return errs.E(errs.KindValidation, op, ErrEmptyPassword)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(op); err != nil {
		return err
	}

	salt, err := storage.LoadOrCreateSalt(ctx, w.store.Adapter())
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	key := storage.DeriveKey(password, salt)
	defer clear(key)
	if err := w.store.Rekey(ctx, key, nil); err != nil {
		return err
	}
	w.logger.Info("storage password set")
	return nil
}

// ClearStoragePassword rewrites every record as plaintext.
func (w *Wallet) ClearStoragePassword(ctx context.Context) error {
	const op = "wallet.ClearStoragePassword"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(op); err != nil {
		return err
	}
	if err := w.store.Rekey(ctx, nil, nil); err != nil {
		return err
	}
	w.logger.Info("storage password cleared")
	return nil
}
