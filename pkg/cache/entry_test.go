package cache

import (
	"testing"
	"time"
)

func TestEntry_Expiry(t *testing.T) {
	tests := []struct {
		name        string
		storedAgo   time.Duration
		ttl         time.Duration
		wantExpired bool
	}{
		{name: "fresh entry", storedAgo: time.Minute, ttl: time.Hour, wantExpired: false},
		{name: "expired entry", storedAgo: 2 * time.Hour, ttl: time.Hour, wantExpired: true},
		{name: "just stored", storedAgo: 0, ttl: time.Hour, wantExpired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Payload:    []byte("payload"),
				StoredAt:   time.Now().UTC().Add(-tt.storedAgo),
				TTLSeconds: int64(tt.ttl.Seconds()),
			}

			if got := entry.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	entry := NewEntry([]byte("payload"), time.Hour)

	ttl := entry.TTL()
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() = %v, want just under 1h", ttl)
	}

	expired := &Entry{
		Payload:    []byte("payload"),
		StoredAt:   time.Now().UTC().Add(-2 * time.Hour),
		TTLSeconds: 3600,
	}
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() on expired entry = %v, want 0", got)
	}
}
