// Package wallet manages the accounts of one seed: it loads them from
// storage, creates and removes them, and owns the event bus and storage
// encryption they share.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libwallet-go/account"
	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/logging"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/secret"
	"github.com/bitfsorg/libwallet-go/storage"
)

// hardened is the first hardened BIP32 index. Account indexes stay below it.
const hardened uint32 = 1 << 31

// Options configures a Wallet.
type Options struct {
	Client network.Client
	Secret secret.Manager
	// Store holds account records. Nil keeps everything in memory.
	Store *storage.Store
	// StoragePassword unlocks a store encrypted by SetStoragePassword.
	StoragePassword string

	// HRP is the bech32 prefix of the network; the node must serve it.
	HRP      string
	CoinType uint32

	Logger     *slog.Logger
	Registerer prometheus.Registerer

	LocalPoW               bool
	PoWWorkers             int
	PollInterval           time.Duration
	InclusionTimeout       time.Duration
	ConsolidationThreshold int
	Now                    func() time.Time
}

// Wallet is the account manager. It is safe for concurrent use.
type Wallet struct {
	mu       sync.RWMutex
	accounts []*account.Handle // accounts[i].Index() == i
	closed   bool

	coinType uint32
	store    *storage.Store
	bus      *event.Bus
	deps     account.Deps
	logger   *slog.Logger

	// closers run on Close, in order, for resources the wallet opened.
	closers []io.Closer
}

// memoryStore backs a wallet created without Options.Store.
var memoryStore = func(logger *slog.Logger) (*storage.Store, error) {
	return storage.New(storage.NewMemoryAdapter(), storage.WithLogger(logger))
}

// New checks the node serves opts.HRP and loads every persisted account.
func New(ctx context.Context, opts Options) (*Wallet, error) {
	const op = "wallet.New"
	switch {
	case opts.Client == nil:
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: client", ErrInvalidOptions))
	case opts.Secret == nil:
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: secret manager", ErrInvalidOptions))
	case opts.HRP == "":
		return nil, errs.E(errs.KindValidation, op, fmt.Errorf("%w: bech32 prefix", ErrInvalidOptions))
	}
	logger := logging.OrDiscard(opts.Logger).With("component", "wallet")

	if err := network.CheckHRP(ctx, opts.Client, opts.HRP); err != nil {
		kind := errs.KindNetwork
		if errors.Is(err, network.ErrNetworkMismatch) {
			kind = errs.KindValidation
		}
		return nil, errs.E(kind, op, err)
	}

	w := &Wallet{
		coinType: opts.CoinType,
		store:    opts.Store,
		logger:   logger,
	}
	if w.store == nil {
		store, err := memoryStore(opts.Logger)
		if err != nil {
			return nil, errs.E(errs.KindStorage, op, err)
		}
		w.store = store
		w.closers = append(w.closers, store)
	}
	if opts.StoragePassword != "" {
		if err := w.unlock(ctx, opts.StoragePassword); err != nil {
			w.abort()
			return nil, errs.E(errs.KindStorage, op, err)
		}
	}

	w.bus = event.NewBus(opts.Registerer, opts.Logger)
	w.deps = account.Deps{
		Client:                 opts.Client,
		Secret:                 opts.Secret,
		Store:                  w.store,
		Bus:                    w.bus,
		Logger:                 opts.Logger,
		Metrics:                account.NewMetrics(opts.Registerer),
		HRP:                    opts.HRP,
		LocalPoW:               opts.LocalPoW,
		PoWWorkers:             opts.PoWWorkers,
		PollInterval:           opts.PollInterval,
		InclusionTimeout:       opts.InclusionTimeout,
		ConsolidationThreshold: opts.ConsolidationThreshold,
		Now:                    opts.Now,
	}

	indexes, err := w.loadIndexes(ctx)
	if err != nil {
		w.abort()
		return nil, err
	}
	for _, i := range indexes {
		h, err := account.Load(ctx, i, w.deps)
		if err != nil {
			w.abort()
			return nil, err
		}
		w.accounts = append(w.accounts, h)
	}
	logger.Info("wallet opened", "accounts", len(w.accounts), "storage", w.store.ID(), "encrypted", w.store.Encrypted())
	return w, nil
}

// unlock derives the storage key from password and the stored salt.
func (w *Wallet) unlock(ctx context.Context, password string) error {
	salt, err := storage.LoadOrCreateSalt(ctx, w.store.Adapter())
	if err != nil {
		return err
	}
	key := storage.DeriveKey(password, salt)
	defer clear(key)
	return w.store.SetEncryptionKey(key)
}

// loadIndexes reads the account list. Accounts are numbered from zero
// without gaps, because only the latest account can be removed.
func (w *Wallet) loadIndexes(ctx context.Context) ([]uint32, error) {
	const op = "wallet.loadIndexes"
	var indexes []uint32
	if err := w.store.Get(ctx, storage.AccountsKey, &indexes); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, errs.E(errs.KindStorage, op, err)
	}
	for pos, i := range indexes {
		if i != uint32(pos) {
			return nil, errs.E(errs.KindStorage, op, fmt.Errorf("%w: position %d holds index %d", ErrInvalidAccountList, pos, i))
		}
	}
	return indexes, nil
}

// saveIndexesLocked persists the account list. The caller holds w.mu.
func (w *Wallet) saveIndexesLocked(ctx context.Context) error {
	indexes := make([]uint32, len(w.accounts))
	for i, h := range w.accounts {
		indexes[i] = h.Index()
	}
	return w.store.Set(ctx, storage.AccountsKey, indexes)
}

// Events returns the bus every account of the wallet emits on.
func (w *Wallet) Events() *event.Bus {
	return w.bus
}

// Close stops event delivery and releases resources the wallet opened.
// A store passed in Options is left open. Close is idempotent.
func (w *Wallet) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.bus.Close()
	var errList []error
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	w.logger.Info("wallet closed")
	return errors.Join(errList...)
}

// abort releases what New opened before it failed.
func (w *Wallet) abort() {
	if w.bus != nil {
		w.bus.Close()
	}
	for _, c := range w.closers {
		_ = c.Close()
	}
}

func (w *Wallet) checkOpenLocked(op string) error {
	if w.closed {
		return errs.E(errs.KindValidation, op, ErrClosed)
	}
	return nil
}
