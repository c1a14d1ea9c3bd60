package network

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libwallet-go/types"
)

// Compile-time interface check.
var _ Client = (*RPCClient)(nil)

// NodeInfo is the result of getnodeinfo.
type NodeInfo struct {
	Name        string              `json:"name"`
	NetworkName string              `json:"networkName"`
	NetworkID   uint64              `json:"networkId"`
	Bech32HRP   string              `json:"bech32Hrp"`
	MinPoWScore uint32              `json:"minPowScore"`
	TokenSupply uint64              `json:"tokenSupply"`
	Rent        types.RentStructure `json:"rentStructure"`
}

// Info calls `getnodeinfo`.
func (c *RPCClient) Info(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := c.Call(ctx, "getnodeinfo", nil, &info); err != nil {
		return nil, err
	}
	if info.Bech32HRP == "" {
		return nil, fmt.Errorf("%w: node info without bech32 prefix", ErrInvalidResponse)
	}
	return &info, nil
}

func (c *RPCClient) RentStructure(ctx context.Context) (types.RentStructure, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return types.RentStructure{}, err
	}
	return info.Rent, nil
}

func (c *RPCClient) TokenSupply(ctx context.Context) (uint64, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.TokenSupply, nil
}

func (c *RPCClient) Bech32HRP(ctx context.Context) (string, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Bech32HRP, nil
}

func (c *RPCClient) NetworkID(ctx context.Context) (uint64, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.NetworkID, nil
}

func (c *RPCClient) MinPoWScore(ctx context.Context) (uint32, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.MinPoWScore, nil
}

// Tips calls `gettips`.
func (c *RPCClient) Tips(ctx context.Context) ([]types.BlockID, error) {
	var tips []types.BlockID
	if err := c.Call(ctx, "gettips", nil, &tips); err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, fmt.Errorf("%w: no tips", ErrInvalidResponse)
	}
	return tips, nil
}

// SubmitBlock calls `submitblock block`. RPC errors are wrapped with ErrBlockRejected.
func (c *RPCClient) SubmitBlock(ctx context.Context, block *types.Block) (types.BlockID, error) {
	var id types.BlockID
	if err := c.Call(ctx, "submitblock", []any{block}, &id); err != nil {
		return types.BlockID{}, fmt.Errorf("%w: %w", ErrBlockRejected, err)
	}
	if id.IsNull() {
		return types.BlockID{}, fmt.Errorf("%w: empty block id", ErrInvalidResponse)
	}
	return id, nil
}

// InclusionState calls `getinclusionstate "txid"`.
func (c *RPCClient) InclusionState(ctx context.Context, id types.TransactionID) (types.InclusionState, error) {
	var state types.InclusionState
	if err := c.Call(ctx, "getinclusionstate", []any{id}, &state); err != nil {
		return "", err
	}
	switch state {
	case types.InclusionPending, types.InclusionIncluded, types.InclusionConflicting, types.InclusionUnknownPruned:
		return state, nil
	default:
		return "", fmt.Errorf("%w: inclusion state %q", ErrInvalidResponse, state)
	}
}

// OutputIDs calls `getoutputids "address"`.
func (c *RPCClient) OutputIDs(ctx context.Context, address string) ([]types.OutputID, error) {
	var ids []types.OutputID
	if err := c.Call(ctx, "getoutputids", []any{address}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Output calls `getoutput "outputId"`.
func (c *RPCClient) Output(ctx context.Context, id types.OutputID) (*OutputWithMetadata, error) {
	var out OutputWithMetadata
	if err := c.Call(ctx, "getoutput", []any{id}, &out); err != nil {
		return nil, err
	}
	if out.Output == nil {
		return nil, fmt.Errorf("%w: output %s has no body", ErrInvalidResponse, id)
	}
	out.OutputID = id
	return &out, nil
}
