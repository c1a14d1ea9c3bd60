package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/logging"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/secret"
	"github.com/bitfsorg/libwallet-go/storage"
	"github.com/bitfsorg/libwallet-go/types"
)

const (
	// DefaultPollInterval paces inclusion polling.
	DefaultPollInterval = 2 * time.Second
	// DefaultInclusionTimeout bounds AwaitInclusion when no timeout is given.
	DefaultInclusionTimeout = 2 * time.Minute
)

// Deps are the collaborators and settings shared by the accounts of a wallet.
type Deps struct {
	Client network.Client
	Secret secret.Manager
	// Store persists account records. Nil keeps the account in memory only.
	Store   *storage.Store
	Bus     *event.Bus
	Logger  *slog.Logger
	Metrics *Metrics

	// HRP is the bech32 prefix of the configured network. Addresses with
	// another prefix are rejected before any node call.
	HRP string

	// LocalPoW solves proof-of-work before submitting blocks.
	LocalPoW   bool
	PoWWorkers int

	PollInterval           time.Duration
	InclusionTimeout       time.Duration
	ConsolidationThreshold int

	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	d.Logger = logging.OrDiscard(d.Logger)
	if d.PollInterval <= 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.InclusionTimeout <= 0 {
		d.InclusionTimeout = DefaultInclusionTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Handle is the concurrency-safe view of one account.
type Handle struct {
	mu sync.RWMutex
	st *state

	// genMu serialises address generation so indexes are never handed out twice.
	genMu sync.Mutex

	deps   Deps
	logger *slog.Logger
}

// New creates an account from d and persists it.
func New(ctx context.Context, d Details, deps Deps) (*Handle, error) {
	h := newHandle(newState(d), deps)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.persistLocked(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Load reads the account with the given index from deps.Store.
func Load(ctx context.Context, index uint32, deps Deps) (*Handle, error) {
	const op = "account.Load"
	if deps.Store == nil {
		return nil, errs.E(errs.KindStorage, op, fmt.Errorf("%w: no store", ErrInvalidParams))
	}
	var d Details
	if err := deps.Store.Get(ctx, storage.AccountKey(index), &d); err != nil {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	st := newState(d)
	if err := deps.Store.Get(ctx, storage.AccountOutputsKey(index), &st.outputs); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	if err := deps.Store.Get(ctx, storage.AccountTransactionsKey(index), &st.transactions); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	if st.outputs == nil {
		st.outputs = make(map[types.OutputID]*OutputData)
	}
	if st.transactions == nil {
		st.transactions = make(map[types.TransactionID]*Transaction)
	}
	st.restore()
	return newHandle(st, deps), nil
}

func newHandle(st *state, deps Deps) *Handle {
	deps = deps.withDefaults()
	return &Handle{
		st:     st,
		deps:   deps,
		logger: deps.Logger.With("component", "account", "account", st.details.Index),
	}
}

// persistLocked writes every record of the account in one batch. The
// caller holds the write lock, so records never interleave on disk.
func (h *Handle) persistLocked(ctx context.Context) error {
	if h.deps.Store == nil {
		return nil
	}
	i := h.st.details.Index
	err := h.deps.Store.BatchSet(ctx, map[string]any{
		storage.AccountKey(i):             h.st.header(),
		storage.AccountOutputsKey(i):      h.st.outputs,
		storage.AccountTransactionsKey(i): h.st.transactions,
	})
	return errs.E(errs.KindStorage, "account.persist", err)
}

// Index returns the account index.
func (h *Handle) Index() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.st.details.Index
}

// Alias returns the account alias.
func (h *Handle) Alias() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.st.details.Alias
}

// SetAlias renames the account.
func (h *Handle) SetAlias(ctx context.Context, alias string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.st.details.Alias = alias
	return h.persistLocked(ctx)
}

// Details returns a copy of the account header.
func (h *Handle) Details() Details {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.st.header()
}

// Addresses returns public then internal addresses.
func (h *Handle) Addresses() []AddressData {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append(slices.Clone(h.st.details.PublicAddresses), h.st.details.InternalAddresses...)
}

// Outputs returns every known output, spent or not, ordered by id.
func (h *Handle) Outputs() []OutputData {
	return h.outputs(func(*OutputData) bool { return true })
}

// UnspentOutputs returns outputs not yet consumed.
func (h *Handle) UnspentOutputs() []OutputData {
	return h.outputs(func(o *OutputData) bool { return !o.Spent })
}

func (h *Handle) outputs(keep func(*OutputData) bool) []OutputData {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]OutputData, 0, len(h.st.outputs))
	for _, o := range h.st.outputs {
		if keep(o) {
			out = append(out, *o)
		}
	}
	slices.SortFunc(out, func(a, b OutputData) int { return a.OutputID.Compare(b.OutputID) })
	return out
}

// Transactions returns every transaction sent by the account, oldest first.
func (h *Handle) Transactions() []*Transaction {
	return h.transactions(func(*Transaction) bool { return true })
}

// PendingTransactions returns submitted transactions awaiting inclusion.
func (h *Handle) PendingTransactions() []*Transaction {
	h.mu.RLock()
	pending := make(map[types.TransactionID]struct{}, len(h.st.pending))
	for id := range h.st.pending {
		pending[id] = struct{}{}
	}
	h.mu.RUnlock()
	return h.transactions(func(t *Transaction) bool {
		_, ok := pending[t.ID]
		return ok
	})
}

func (h *Handle) transactions(keep func(*Transaction) bool) []*Transaction {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Transaction, 0, len(h.st.transactions))
	for _, t := range h.st.transactions {
		if keep(t) {
			out = append(out, t.clone())
		}
	}
	slices.SortFunc(out, func(a, b *Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out
}

// Transaction returns the transaction with the given id.
func (h *Handle) Transaction(id types.TransactionID) (*Transaction, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.st.transactions[id]
	if !ok {
		return nil, errs.E(errs.KindValidation, "account.Transaction", fmt.Errorf("%w: %s", ErrTransactionNotFound, id))
	}
	return t.clone(), nil
}

// HasHistory reports whether the account has seen outputs or sent transactions.
func (h *Handle) HasHistory() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.st.outputs) > 0 || len(h.st.transactions) > 0
}

// Balance computes the balance from the cached outputs.
func (h *Handle) Balance(ctx context.Context) (Balance, error) {
	rent, err := h.deps.Client.RentStructure(ctx)
	if err != nil {
		return Balance{}, errs.E(errs.KindNetwork, "account.Balance", err)
	}
	now := uint32(h.deps.Now().Unix())
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.st.balance(rent, now), nil
}

func (h *Handle) emit(kind event.Kind, data any) {
	h.deps.Bus.Emit(h.st.details.Index, kind, data)
}

func (h *Handle) progress(p event.Progress) {
	h.deps.Bus.EmitProgress(h.st.details.Index, p)
}
