package cache

import (
	"time"
)

// Entry wraps a cached payload with expiry metadata. The cold tier has no
// native per-key TTL, so expiry is checked against StoredAt + TTLSeconds
// on every read.
type Entry struct {
	// Payload is the serialized resolution result.
	Payload []byte `json:"payload"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`

	// TTLSeconds is the entry lifetime from StoredAt.
	TTLSeconds int64 `json:"ttl_seconds"`

	// PromotedFrom names the tier this entry was promoted out of,
	// empty for direct writes.
	PromotedFrom string `json:"promoted_from,omitempty"`
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(payload []byte, ttl time.Duration) *Entry {
	return &Entry{
		Payload:    payload,
		StoredAt:   time.Now().UTC(),
		TTLSeconds: int64(ttl.Seconds()),
	}
}

// ExpiresAt returns the entry's expiry time.
func (e *Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// IsExpired returns true if the entry has passed its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt())
}

// TTL returns the remaining time until expiration, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt())
	if ttl < 0 {
		return 0
	}
	return ttl
}
