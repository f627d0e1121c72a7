package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the low-latency hot tier backed by Redis. Expiry is
// delegated to Redis' native per-key TTL.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates the hot tier.
func NewRedisTier(client *redis.Client) *RedisTier {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisTier{client: client}
}

// Name implements Tier.
func (t *RedisTier) Name() string { return "redis" }

// Get implements Tier.
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set implements Tier.
func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := t.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Tier.
func (t *RedisTier) Delete(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping implements Tier.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}
