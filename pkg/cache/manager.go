package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the key was absent (or expired) in every tier.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// promoteTimeout bounds the background write of a promoted entry.
const promoteTimeout = 5 * time.Second

// Manager runs the tiered lookup chain. Tiers are consulted in order;
// earlier tiers are expected to be faster. Adding a third tier is a
// constructor change, not a call-site change.
type Manager struct {
	tiers      []Tier
	promoteTTL time.Duration
	logger     zerolog.Logger

	// promotions tracks in-flight background promotions so tests can
	// wait for them deterministically.
	promotions sync.WaitGroup
}

// NewManager creates a cache manager over the given tiers, ordered from
// hottest to coldest. promoteTTL is the hot TTL applied to entries
// promoted out of a colder tier.
func NewManager(logger zerolog.Logger, promoteTTL time.Duration, tiers ...Tier) *Manager {
	if len(tiers) == 0 {
		panic("cache manager requires at least one tier")
	}
	if promoteTTL <= 0 {
		promoteTTL = 24 * time.Hour
	}
	return &Manager{
		tiers:      tiers,
		promoteTTL: promoteTTL,
		logger:     logger,
	}
}

// Get walks the tier chain and returns the first unexpired payload along
// with the name of the tier that served it. A hit in a later tier is
// promoted asynchronously into every earlier tier; the response is never
// blocked on promotion. Returns ErrCacheMiss when no tier has the key.
func (m *Manager) Get(ctx context.Context, key Key) ([]byte, string, error) {
	cacheKey := key.String()

	for i, tier := range m.tiers {
		data, found, err := tier.Get(ctx, cacheKey)
		if err != nil {
			CacheErrors.WithLabelValues(tier.Name(), "get").Inc()
			m.logger.Warn().Err(err).
				Str("tier", tier.Name()).
				Str("key", cacheKey).
				Msg("Cache tier read failed, trying next tier")
			continue
		}
		if !found {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			CacheErrors.WithLabelValues(tier.Name(), "get").Inc()
			m.logger.Warn().Err(err).
				Str("tier", tier.Name()).
				Str("key", cacheKey).
				Msg("Corrupt cache entry, evicting")
			_ = tier.Delete(ctx, cacheKey)
			continue
		}

		// Expired entries are treated as absent and lazily evicted. This
		// matters for the cold tier, which has no native expiry.
		if entry.IsExpired() {
			CacheExpiredEvictions.WithLabelValues(tier.Name()).Inc()
			_ = tier.Delete(ctx, cacheKey)
			continue
		}

		CacheHits.WithLabelValues(tier.Name()).Inc()

		if i > 0 {
			m.promote(cacheKey, tier.Name(), entry.Payload, m.tiers[:i])
		}

		m.logger.Debug().
			Str("tier", tier.Name()).
			Str("key", cacheKey).
			Dur("ttl", entry.TTL()).
			Msg("Cache hit")

		return entry.Payload, tier.Name(), nil
	}

	CacheMisses.Inc()
	return nil, "", ErrCacheMiss
}

// Set writes the payload to every tier concurrently, best-effort. A tier
// write failure is logged and counted but never returned: a cache-write
// failure must not fail an otherwise-successful resolution.
func (m *Manager) Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	entry := NewEntry(payload, ttl)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	cacheKey := key.String()

	var wg sync.WaitGroup
	for _, tier := range m.tiers {
		wg.Add(1)
		go func(t Tier) {
			defer wg.Done()
			if err := t.Set(ctx, cacheKey, data, ttl); err != nil {
				CacheErrors.WithLabelValues(t.Name(), "set").Inc()
				m.logger.Warn().Err(err).
					Str("tier", t.Name()).
					Str("key", cacheKey).
					Msg("Cache tier write failed")
			}
		}(tier)
	}
	wg.Wait()

	return nil
}

// Delete removes the key from every tier, best-effort.
func (m *Manager) Delete(ctx context.Context, key Key) {
	cacheKey := key.String()
	for _, tier := range m.tiers {
		if err := tier.Delete(ctx, cacheKey); err != nil {
			CacheErrors.WithLabelValues(tier.Name(), "delete").Inc()
			m.logger.Warn().Err(err).
				Str("tier", tier.Name()).
				Str("key", cacheKey).
				Msg("Cache tier delete failed")
		}
	}
}

// Health pings every tier and reports per-tier status. A nil map value
// means the tier is reachable.
func (m *Manager) Health(ctx context.Context) map[string]error {
	status := make(map[string]error, len(m.tiers))
	for _, tier := range m.tiers {
		status[tier.Name()] = tier.Ping(ctx)
	}
	return status
}

// promote copies a hit from a colder tier into all earlier tiers with the
// hot TTL, in the background.
func (m *Manager) promote(cacheKey, fromTier string, payload []byte, targets []Tier) {
	entry := NewEntry(payload, m.promoteTTL)
	entry.PromotedFrom = fromTier

	data, err := json.Marshal(entry)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", cacheKey).Msg("Marshal promoted entry failed")
		return
	}

	m.promotions.Add(1)
	go func() {
		defer m.promotions.Done()

		ctx, cancel := context.WithTimeout(context.Background(), promoteTimeout)
		defer cancel()

		for _, tier := range targets {
			if err := tier.Set(ctx, cacheKey, data, m.promoteTTL); err != nil {
				CacheErrors.WithLabelValues(tier.Name(), "set").Inc()
				m.logger.Warn().Err(err).
					Str("tier", tier.Name()).
					Str("key", cacheKey).
					Msg("Cache promotion write failed")
				continue
			}
			CachePromotions.WithLabelValues(fromTier).Inc()
			m.logger.Debug().
				Str("from", fromTier).
				Str("to", tier.Name()).
				Str("key", cacheKey).
				Msg("Promoted cache entry")
		}
	}()
}

// waitPromotions blocks until all in-flight promotions finish. Test hook.
func (m *Manager) waitPromotions() {
	m.promotions.Wait()
}
