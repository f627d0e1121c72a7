package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func openTestBolt(t *testing.T) *BoltTier {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "cache.db"), 0o600, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tier, err := NewBoltTier(db)
	if err != nil {
		t.Fatalf("NewBoltTier() error = %v", err)
	}
	return tier
}

func TestBoltTier_RoundTrip(t *testing.T) {
	tier := openTestBolt(t)
	ctx := context.Background()

	value := []byte(`{"payload":"dGVzdA=="}`)
	if err := tier.Set(ctx, "bookmeta:isbn:abc", value, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found, err := tier.Get(ctx, "bookmeta:isbn:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if string(got) != string(value) {
		t.Errorf("Get() = %q, want %q (tier must be byte-transparent)", got, value)
	}
}

func TestBoltTier_MissAndDelete(t *testing.T) {
	tier := openTestBolt(t)
	ctx := context.Background()

	_, found, err := tier.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() on absent key found = true")
	}

	if err := tier.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := tier.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, _ = tier.Get(ctx, "k")
	if found {
		t.Error("key still present after Delete")
	}
}

func TestBoltTier_Ping(t *testing.T) {
	tier := openTestBolt(t)
	if err := tier.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
