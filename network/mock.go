package network

import (
	"context"

	"github.com/bitfsorg/libwallet-go/types"
)

// MockClient is a test double for Client.
// All function fields must be set before the corresponding method is called.
type MockClient struct {
	RentStructureFn  func(ctx context.Context) (types.RentStructure, error)
	TokenSupplyFn    func(ctx context.Context) (uint64, error)
	Bech32HRPFn      func(ctx context.Context) (string, error)
	NetworkIDFn      func(ctx context.Context) (uint64, error)
	MinPoWScoreFn    func(ctx context.Context) (uint32, error)
	TipsFn           func(ctx context.Context) ([]types.BlockID, error)
	SubmitBlockFn    func(ctx context.Context, block *types.Block) (types.BlockID, error)
	InclusionStateFn func(ctx context.Context, id types.TransactionID) (types.InclusionState, error)
	OutputIDsFn      func(ctx context.Context, address string) ([]types.OutputID, error)
	OutputFn         func(ctx context.Context, id types.OutputID) (*OutputWithMetadata, error)
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

func (m *MockClient) RentStructure(ctx context.Context) (types.RentStructure, error) {
	return m.RentStructureFn(ctx)
}
func (m *MockClient) TokenSupply(ctx context.Context) (uint64, error) {
	return m.TokenSupplyFn(ctx)
}
func (m *MockClient) Bech32HRP(ctx context.Context) (string, error) {
	return m.Bech32HRPFn(ctx)
}
func (m *MockClient) NetworkID(ctx context.Context) (uint64, error) {
	return m.NetworkIDFn(ctx)
}
func (m *MockClient) MinPoWScore(ctx context.Context) (uint32, error) {
	return m.MinPoWScoreFn(ctx)
}
func (m *MockClient) Tips(ctx context.Context) ([]types.BlockID, error) {
	return m.TipsFn(ctx)
}
func (m *MockClient) SubmitBlock(ctx context.Context, block *types.Block) (types.BlockID, error) {
	return m.SubmitBlockFn(ctx, block)
}
func (m *MockClient) InclusionState(ctx context.Context, id types.TransactionID) (types.InclusionState, error) {
	return m.InclusionStateFn(ctx, id)
}
func (m *MockClient) OutputIDs(ctx context.Context, address string) ([]types.OutputID, error) {
	return m.OutputIDsFn(ctx, address)
}
func (m *MockClient) Output(ctx context.Context, id types.OutputID) (*OutputWithMetadata, error) {
	return m.OutputFn(ctx, id)
}
