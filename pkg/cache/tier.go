package cache

import (
	"context"
	"time"
)

// Tier is a single cache store in the lookup chain. Implementations must
// be byte-for-byte transparent: Get returns exactly the bytes previously
// passed to Set for the same key. Entry framing is the Manager's concern.
//
// Tiers must be safe for concurrent use.
type Tier interface {
	// Name identifies the tier in metrics, logs, and cache-status headers.
	Name() string

	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// IO errors are returned as (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. Tiers with native expiry honor ttl;
	// durable tiers may ignore it (the Manager's Entry carries expiry
	// metadata for them).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key, best-effort.
	Delete(ctx context.Context, key string) error

	// Ping reports tier availability for health checks.
	Ping(ctx context.Context) error
}
