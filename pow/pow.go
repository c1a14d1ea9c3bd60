// Package pow solves the block proof-of-work puzzle locally, for nodes that
// do not do it on the wallet's behalf.
//
// A block's score is the number of leading zero bits of
// blake2b-256(powBytes || nonce), with the nonce as 8 little-endian bytes.
package pow

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwallet-go/types"
)

// ErrUnsolvable indicates a target above the hash width.
var ErrUnsolvable = errors.New("pow: target exceeds 256 bits")

// checkEvery is how many nonces a worker tries between cancellation checks.
const checkEvery = 1 << 10

var errSolved = errors.New("pow: solved")

// Score returns the leading zero bits of the hash of data and nonce.
func Score(data []byte, nonce uint64) uint32 {
	buf := make([]byte, len(data)+8)
	copy(buf, data)
	return score(buf, len(data), nonce)
}

// score writes nonce into buf[at:] and hashes buf.
func score(buf []byte, at int, nonce uint64) uint32 {
	binary.LittleEndian.PutUint64(buf[at:], nonce)
	sum := blake2b.Sum256(buf)
	var n uint32
	for _, b := range sum {
		if b != 0 {
			return n + uint32(bits.LeadingZeros8(b))
		}
		n += 8
	}
	return n
}

// Solve finds a nonce giving data a score of at least target. Workers split
// the nonce space; a non-positive count uses GOMAXPROCS. Solve stops when
// ctx is done.
func Solve(ctx context.Context, data []byte, target uint32, workers int) (uint64, error) {
	if target == 0 {
		return 0, nil
	}
	if target > 8*types.HashLength {
		return 0, ErrUnsolvable
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		found atomic.Bool
		nonce atomic.Uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			buf := make([]byte, len(data)+8)
			copy(buf, data)
			for n := uint64(w); ; n += uint64(workers) {
				if n/uint64(workers)%checkEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if score(buf, len(data), n) >= target {
					if found.CompareAndSwap(false, true) {
						nonce.Store(n)
					}
					return errSolved
				}
			}
		})
	}
	err := g.Wait()
	if found.Load() {
		return nonce.Load(), nil
	}
	return 0, fmt.Errorf("pow: %w", err)
}

// SolveBlock sets block.Nonce to a solution for target.
func SolveBlock(ctx context.Context, block *types.Block, target uint32, workers int) error {
	nonce, err := Solve(ctx, block.PoWBytes(), target, workers)
	if err != nil {
		return err
	}
	block.Nonce = nonce
	return nil
}

// BlockScore returns the score of a block as submitted.
func BlockScore(block *types.Block) uint32 {
	return Score(block.PoWBytes(), block.Nonce)
}
