package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces wallet keys inside a shared redis database.
const DefaultRedisPrefix = "wallet:"

// RedisAdapter stores records as redis strings under a key prefix.
type RedisAdapter struct {
	client *redis.Client
	prefix string
}

// Compile-time interface check.
var _ Adapter = (*RedisAdapter)(nil)

// NewRedisAdapter wraps an existing client. An empty prefix uses DefaultRedisPrefix.
func NewRedisAdapter(client *redis.Client, prefix string) *RedisAdapter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisAdapter{client: client, prefix: prefix}
}

// DialRedisAdapter connects to addr and verifies the connection.
func DialRedisAdapter(ctx context.Context, addr, prefix string) (*RedisAdapter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", ErrIOFailure, err)
	}
	return NewRedisAdapter(client, prefix), nil
}

func (r *RedisAdapter) ID() string { return "redis" }

func (r *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return value, nil
}

func (r *RedisAdapter) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// BatchSet writes all records inside MULTI/EXEC.
func (r *RedisAdapter) BatchSet(ctx context.Context, records map[string][]byte) error {
	for key := range records {
		if key == "" {
			return ErrEmptyKey
		}
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range records {
			pipe.Set(ctx, r.prefix+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func (r *RedisAdapter) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func (r *RedisAdapter) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisAdapter) Close() error { return r.client.Close() }
