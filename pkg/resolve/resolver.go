// Package resolve implements the resolution pipeline: cache lookup,
// provider selection, fallback orchestration, cache write-back, and
// bounded-concurrency batch resolution.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/shelfmark/bookmeta/pkg/cache"
	"github.com/shelfmark/bookmeta/pkg/provider"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_resolutions_total",
		Help: "Total resolutions by kind and status",
	}, []string{"kind", "status"}) // status: hit, miss, not_found, failed

	fallbackAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookmeta_fallback_attempts",
		Help:    "Number of providers attempted per fallback-mode resolution",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"kind"})
)

// CacheStatusMiss is the cache status reported when providers were
// consulted. Hits report "HIT-<tier>".
const CacheStatusMiss = "MISS"

// Selector produces the fallback order and tracks provider consumption.
// Implemented by quota.Strategy.
type Selector interface {
	Rank(ctx context.Context, names []string) ([]string, error)
	Consume(ctx context.Context, name string) error
	Observe(ctx context.Context, name string, success bool, latency time.Duration)
}

// Config holds resolver tuning.
type Config struct {
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration

	// SearchTTL is the cache lifetime for volatile free-text queries.
	SearchTTL time.Duration

	// ISBNTTL is the cache lifetime for stable ISBN lookups.
	ISBNTTL time.Duration
}

// DefaultConfig returns the reference tuning: 5s per provider call, 24h
// for search results, a year for ISBN lookups.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 5 * time.Second,
		SearchTTL:   24 * time.Hour,
		ISBNTTL:     365 * 24 * time.Hour,
	}
}

// Resolver runs the single-item resolution pipeline. It is stateless per
// invocation; all cross-request state lives in the cache tiers and the
// selector's counter store.
type Resolver struct {
	cache    *cache.Manager
	selector Selector
	clients  map[string]provider.Client
	order    []string
	cfg      Config
	logger   zerolog.Logger
}

// New creates a resolver over the given provider clients. Client order
// is the fallback order of last resort when ranking is unavailable.
func New(cacheMgr *cache.Manager, selector Selector, clients []provider.Client, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = 24 * time.Hour
	}
	if cfg.ISBNTTL <= 0 {
		cfg.ISBNTTL = 365 * 24 * time.Hour
	}

	m := make(map[string]provider.Client, len(clients))
	order := make([]string, 0, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
		order = append(order, c.Name())
	}

	return &Resolver{
		cache:    cacheMgr,
		selector: selector,
		clients:  m,
		order:    order,
		cfg:      cfg,
		logger:   logger,
	}
}

// HasProvider reports whether a provider name is registered.
func (r *Resolver) HasProvider(name string) bool {
	_, ok := r.clients[name]
	return ok
}

// Providers returns the registered provider names in registration order.
func (r *Resolver) Providers() []string {
	return append([]string(nil), r.order...)
}

// SearchRequest is a normalized free-text search. Query must already be
// canonicalized by cache.NormalizeQuery; the resolver applies no further
// normalization.
type SearchRequest struct {
	Query    string
	Opts     provider.SearchOptions
	Provider string // forced provider, empty for fallback mode
}

// Outcome is a completed resolution plus its cache diagnostics.
type Outcome struct {
	Result      *provider.Result
	CacheStatus string
}

// Search resolves a free-text query through the pipeline.
func (r *Resolver) Search(ctx context.Context, req SearchRequest) (*Outcome, error) {
	key := cache.Key{
		Kind:  cache.KindSearch,
		Query: req.Query,
		Params: map[string]string{
			"maxResults": strconv.Itoa(req.Opts.MaxResults),
			"orderBy":    req.Opts.OrderBy,
			"lang":       req.Opts.LangRestrict,
		},
		Provider: req.Provider,
	}

	return r.resolve(ctx, cache.KindSearch, key, r.cfg.SearchTTL, req.Provider,
		func(ctx context.Context, c provider.Client) (*provider.Result, error) {
			return c.Search(ctx, req.Query, req.Opts)
		})
}

// LookupISBN resolves a single normalized ISBN through the pipeline.
func (r *Resolver) LookupISBN(ctx context.Context, isbn, forced string) (*Outcome, error) {
	key := cache.Key{
		Kind:     cache.KindISBN,
		Query:    isbn,
		Provider: forced,
	}

	return r.resolve(ctx, cache.KindISBN, key, r.cfg.ISBNTTL, forced,
		func(ctx context.Context, c provider.Client) (*provider.Result, error) {
			return c.LookupISBN(ctx, isbn)
		})
}

// resolve is the shared pipeline: cache read, provider invocation
// (forced or ranked fallback), cache write.
func (r *Resolver) resolve(
	ctx context.Context,
	kind string,
	key cache.Key,
	ttl time.Duration,
	forced string,
	invoke func(ctx context.Context, c provider.Client) (*provider.Result, error),
) (*Outcome, error) {
	if payload, tier, err := r.cache.Get(ctx, key); err == nil {
		var result provider.Result
		if jsonErr := json.Unmarshal(payload, &result); jsonErr == nil {
			resolutionsTotal.WithLabelValues(kind, "hit").Inc()
			return &Outcome{Result: &result, CacheStatus: "HIT-" + tier}, nil
		}
		// Undecodable payloads fall through to providers; the entry will
		// be overwritten by the fresh result.
		r.logger.Warn().Str("key", key.String()).Msg("Cached payload undecodable, re-resolving")
	}

	attempts, err := r.attemptOrder(ctx, forced)
	if err != nil {
		return nil, err
	}

	var providerErrors []ProviderError
	tried := 0

	for _, name := range attempts {
		client := r.clients[name]
		tried++

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		start := time.Now()
		result, callErr := invoke(callCtx, client)
		latency := time.Since(start)
		cancel()

		if callErr != nil {
			if errors.Is(callErr, provider.ErrNoResults) {
				// A successful response that found nothing: the chain
				// stops here, this is not a provider failure.
				r.selector.Observe(ctx, name, true, latency)
				if consumeErr := r.selector.Consume(ctx, name); consumeErr != nil {
					r.logger.Warn().Err(consumeErr).Str("provider", name).Msg("Quota consume failed")
				}
				resolutionsTotal.WithLabelValues(kind, "not_found").Inc()
				return nil, callErr
			}

			r.selector.Observe(ctx, name, false, latency)
			providerErrors = append(providerErrors, ProviderError{Provider: name, Message: callErr.Error()})
			r.logger.Warn().Err(callErr).
				Str("provider", name).
				Str("kind", kind).
				Dur("latency", latency).
				Msg("Provider call failed")

			if forced != "" {
				resolutionsTotal.WithLabelValues(kind, "failed").Inc()
				return nil, &ProviderUnavailableError{Provider: name, Err: callErr}
			}
			continue
		}

		r.selector.Observe(ctx, name, true, latency)
		if consumeErr := r.selector.Consume(ctx, name); consumeErr != nil {
			r.logger.Warn().Err(consumeErr).Str("provider", name).Msg("Quota consume failed")
		}

		result.Provider = name
		result.Forced = forced != ""
		result.LatencyMs = latency.Milliseconds()

		if payload, marshalErr := json.Marshal(result); marshalErr == nil {
			if setErr := r.cache.Set(ctx, key, payload, ttl); setErr != nil {
				r.logger.Warn().Err(setErr).Str("key", key.String()).Msg("Cache write failed")
			}
		}

		if forced == "" {
			fallbackAttempts.WithLabelValues(kind).Observe(float64(tried))
		}
		resolutionsTotal.WithLabelValues(kind, "miss").Inc()

		r.logger.Debug().
			Str("provider", name).
			Str("kind", kind).
			Int("items", len(result.Items)).
			Dur("latency", latency).
			Msg("Resolved from provider")

		return &Outcome{Result: result, CacheStatus: CacheStatusMiss}, nil
	}

	resolutionsTotal.WithLabelValues(kind, "failed").Inc()
	return nil, &AllFailedError{Errors: providerErrors}
}

// attemptOrder returns the providers to try. Forced mode yields exactly
// one; fallback mode asks the selector for a ranked order and falls back
// to registration order if ranking is unavailable.
func (r *Resolver) attemptOrder(ctx context.Context, forced string) ([]string, error) {
	if forced != "" {
		if !r.HasProvider(forced) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, forced)
		}
		return []string{forced}, nil
	}

	ranked, err := r.selector.Rank(ctx, r.order)
	if err != nil || len(ranked) == 0 {
		r.logger.Warn().Err(err).Msg("Provider ranking unavailable, using registration order")
		return r.order, nil
	}
	return ranked, nil
}
