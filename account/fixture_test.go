package account

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/secret"
	"github.com/bitfsorg/libwallet-go/storage"
	"github.com/bitfsorg/libwallet-go/types"
)

const (
	testHRP      = "rms"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testCoinType = 4219
)

var testNow = time.Unix(1_700_000_000, 0)

type fixture struct {
	h      *Handle
	client *network.MockClient
	bus    *event.Bus
	store  *storage.Store
	mgr    *secret.MnemonicManager
	addr   types.Address

	submits atomic.Int32
	tips    atomic.Uint32
	seq     byte
}

func testBlockID(t *testing.T, n uint32) types.BlockID {
	t.Helper()
	raw := make([]byte, types.HashLength)
	raw[0], raw[1], raw[31] = byte(n), byte(n>>8), 0xB1
	id, err := types.NewBlockID(raw)
	require.NoError(t, err)
	return id
}

// foreignAddress is a key address outside the account, in bech32.
func foreignAddress(seed byte) string {
	var h [types.HashLength]byte
	h[0], h[31] = seed, 0xEE
	return types.KeyAddress(h).Bech32(testHRP)
}

func mustParse(t *testing.T, bech string) types.Address {
	t.Helper()
	addr, err := types.ParseBech32ForNetwork(bech, testHRP)
	require.NoError(t, err)
	return addr
}

func (f *fixture) mockClient(t *testing.T) *network.MockClient {
	t.Helper()
	return &network.MockClient{
		RentStructureFn: func(context.Context) (types.RentStructure, error) { return types.DefaultRentStructure, nil },
		TokenSupplyFn:   func(context.Context) (uint64, error) { return 2_779_530_283_277_761, nil },
		Bech32HRPFn:     func(context.Context) (string, error) { return testHRP, nil },
		NetworkIDFn:     func(context.Context) (uint64, error) { return 7, nil },
		MinPoWScoreFn:   func(context.Context) (uint32, error) { return 0, nil },
		TipsFn: func(context.Context) ([]types.BlockID, error) {
			return []types.BlockID{testBlockID(t, f.tips.Add(1))}, nil
		},
		SubmitBlockFn: func(_ context.Context, b *types.Block) (types.BlockID, error) {
			f.submits.Add(1)
			return b.ID(), nil
		},
		InclusionStateFn: func(context.Context, types.TransactionID) (types.InclusionState, error) {
			return types.InclusionPending, nil
		},
		OutputIDsFn: func(context.Context, string) ([]types.OutputID, error) { return nil, nil },
		OutputFn: func(context.Context, types.OutputID) (*network.OutputWithMetadata, error) {
			return nil, errors.New("not found")
		},
	}
}

func newFixture(t *testing.T, tweak ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{bus: event.NewBus(nil, nil)}
	t.Cleanup(f.bus.Close)

	mgr, err := secret.NewMnemonicManager(testMnemonic, "", testCoinType)
	require.NoError(t, err)
	f.mgr = mgr
	f.store, err = storage.New(storage.NewMemoryAdapter())
	require.NoError(t, err)
	f.client = f.mockClient(t)

	deps := Deps{
		Client:       f.client,
		Secret:       mgr,
		Store:        f.store,
		Bus:          f.bus,
		HRP:          testHRP,
		PollInterval: 5 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	}
	for _, fn := range tweak {
		fn(&deps)
	}

	f.h, err = New(context.Background(), Details{Index: 0, Alias: "main", CoinType: testCoinType}, deps)
	require.NoError(t, err)
	addrs, err := f.h.GenerateAddresses(context.Background(), 1, false)
	require.NoError(t, err)
	f.addr = addrs[0].Address
	return f
}

// fund inserts an unspent output into the account cache.
func (f *fixture) fund(t *testing.T, out *types.Output) types.OutputID {
	t.Helper()
	f.seq++
	raw := make([]byte, types.HashLength)
	raw[0], raw[31] = f.seq, 0xF0
	txID, err := types.NewTransactionID(raw)
	require.NoError(t, err)
	id := types.NewOutputID(txID, 0)

	owner, ok := out.Owner()
	require.True(t, ok)
	od := &OutputData{OutputID: id, Output: out, Address: owner, TransactionID: txID}

	f.h.mu.Lock()
	defer f.h.mu.Unlock()
	if a, ok := f.h.st.addresses()[owner]; ok {
		chain := a.Chain
		od.Chain = &chain
	}
	f.h.st.outputs[id] = od
	return id
}

func (f *fixture) fundBasic(t *testing.T, amount uint64) types.OutputID {
	t.Helper()
	return f.fund(t, types.NewBasicOutput(amount, f.addr))
}

func testToken(t *testing.T, seed byte) types.TokenID {
	t.Helper()
	raw := make([]byte, types.FoundryIDLength)
	raw[0], raw[1] = 8, seed
	id, err := types.NewTokenID(raw)
	require.NoError(t, err)
	return id
}

func tokenAmount(id types.TokenID, n int64) types.NativeToken {
	return types.NativeToken{ID: id, Amount: big.NewInt(n)}
}

// drain returns every event already queued on ch.
func drain(ch <-chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func progressSteps(events []event.Event) []event.ProgressStep {
	var steps []event.ProgressStep
	for _, evt := range events {
		if p, ok := evt.Data.(event.Progress); ok {
			steps = append(steps, p.Step)
		}
	}
	return steps
}
