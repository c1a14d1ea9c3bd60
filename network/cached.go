package network

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/bitfsorg/libwallet-go/types"
)

// DefaultCacheTTL is how long CachedClient keeps protocol parameters.
const DefaultCacheTTL = 5 * time.Minute

// CachedClient memoizes the protocol-parameter getters of a Client. These
// change only with protocol upgrades, while every send reads them. All other
// calls pass straight through.
type CachedClient struct {
	Client
	cache *ttlcache.Cache[string, any]
}

// Compile-time interface check.
var _ Client = (*CachedClient)(nil)

// NewCachedClient wraps c. A non-positive ttl uses DefaultCacheTTL.
func NewCachedClient(c Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{
		Client: c,
		cache: ttlcache.New[string, any](
			ttlcache.WithTTL[string, any](ttl),
			ttlcache.WithDisableTouchOnHit[string, any](),
		),
	}
}

// cached returns the value under key, loading and storing it on a miss.
// Errors are not cached.
func cached[T any](ctx context.Context, c *CachedClient, key string, load func(context.Context) (T, error)) (T, error) {
	if item := c.cache.Get(key); item != nil {
		if v, ok := item.Value().(T); ok {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.cache.Set(key, v, ttlcache.DefaultTTL)
	return v, nil
}

func (c *CachedClient) RentStructure(ctx context.Context) (types.RentStructure, error) {
	return cached(ctx, c, "rentStructure", c.Client.RentStructure)
}

func (c *CachedClient) TokenSupply(ctx context.Context) (uint64, error) {
	return cached(ctx, c, "tokenSupply", c.Client.TokenSupply)
}

func (c *CachedClient) Bech32HRP(ctx context.Context) (string, error) {
	return cached(ctx, c, "bech32Hrp", c.Client.Bech32HRP)
}

func (c *CachedClient) NetworkID(ctx context.Context) (uint64, error) {
	return cached(ctx, c, "networkId", c.Client.NetworkID)
}

func (c *CachedClient) MinPoWScore(ctx context.Context) (uint32, error) {
	return cached(ctx, c, "minPowScore", c.Client.MinPoWScore)
}

// Invalidate drops every cached parameter.
func (c *CachedClient) Invalidate() {
	c.cache.DeleteAll()
}
