package cache

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("cache")

// BoltTier is the durable cold tier backed by bbolt. It has no native
// per-key TTL; the Manager's Entry framing carries the expiry metadata
// and expired entries are lazily evicted on read.
type BoltTier struct {
	db *bolt.DB
}

// NewBoltTier creates the cold tier, creating the cache bucket if needed.
func NewBoltTier(db *bolt.DB) (*BoltTier, error) {
	if db == nil {
		return nil, fmt.Errorf("bolt db cannot be nil")
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &BoltTier{db: db}, nil
}

// Name implements Tier.
func (t *BoltTier) Name() string { return "bolt" }

// Get implements Tier.
func (t *BoltTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := t.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(key))
		if data != nil {
			// Copy: bolt buffers are only valid inside the transaction.
			value = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get: %w", err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements Tier. The ttl parameter is ignored; expiry lives in the
// Entry framing written by the Manager.
func (t *BoltTier) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("bolt put: %w", err)
	}
	return nil
}

// Delete implements Tier.
func (t *BoltTier) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt delete: %w", err)
	}
	return nil
}

// Ping implements Tier.
func (t *BoltTier) Ping(_ context.Context) error {
	return t.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return fmt.Errorf("cache bucket missing")
		}
		return nil
	})
}
