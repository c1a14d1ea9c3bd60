package pow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwallet-go/types"
)

func TestScore_Deterministic(t *testing.T) {
	data := []byte("block bytes")
	assert.Equal(t, Score(data, 7), Score(data, 7))
	assert.LessOrEqual(t, Score(data, 7), uint32(256))
}

func TestSolve(t *testing.T) {
	data := []byte("some block")
	for _, workers := range []int{1, 4, 0} {
		nonce, err := Solve(context.Background(), data, 10, workers)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, Score(data, nonce), uint32(10))
	}
}

func TestSolve_ZeroTarget(t *testing.T) {
	nonce, err := Solve(context.Background(), []byte("x"), 0, 4)
	require.NoError(t, err)
	assert.Zero(t, nonce)
}

func TestSolve_Unsolvable(t *testing.T) {
	_, err := Solve(context.Background(), []byte("x"), 257, 1)
	assert.ErrorIs(t, err, ErrUnsolvable)
}

func TestSolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// 200 leading zero bits will not be found before the first check.
	_, err := Solve(ctx, []byte("x"), 200, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveBlock(t *testing.T) {
	block := &types.Block{ProtocolVersion: types.ProtocolVersion, Parents: []types.BlockID{{}}}
	require.NoError(t, SolveBlock(context.Background(), block, 8, 2))
	assert.GreaterOrEqual(t, BlockScore(block), uint32(8))
}
