// Package quota implements the provider selection strategy: daily-reset
// per-provider quota counters and a rolling quality score, combined into
// a dynamic fallback order. Counters live in Redis so every proxy
// instance sees the same remaining headroom; updates are atomic
// increments to avoid double-counting under concurrency.
package quota

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	quotaUsedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bookmeta_provider_quota_used",
		Help: "Provider quota consumed in the current UTC day",
	}, []string{"provider"})

	qualityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bookmeta_provider_quality_score",
		Help: "Rolling provider quality score (0-1)",
	}, []string{"provider"})
)

// Scoring weights: remaining-quota headroom dominates, then cost, then
// observed quality.
const (
	weightRemaining = 0.5
	weightCost      = 0.3
	weightQuality   = 0.2

	// qualityAlpha is the EWMA smoothing factor for quality updates.
	qualityAlpha = 0.2

	// qualityDefault is assumed for providers with no observations yet.
	qualityDefault = 0.7

	// latencyBudget is the latency at which a successful call scores 0.
	latencyBudget = 5 * time.Second

	// counterRetention keeps daily counters past their day for
	// inspection; reset is implicit via key expiry.
	counterRetention = 48 * time.Hour
)

// ProviderSpec is the static configuration for one provider.
type ProviderSpec struct {
	// Name matches the provider client's Name().
	Name string

	// DailyQuota is the upstream call budget per UTC day. 0 means
	// unmetered.
	DailyQuota int64

	// CostWeight expresses relative per-call cost; >= 1, higher is more
	// expensive.
	CostWeight float64
}

// Strategy ranks providers and tracks their consumption.
type Strategy struct {
	redis  *redis.Client
	specs  map[string]ProviderSpec
	logger zerolog.Logger
}

// NewStrategy creates a selection strategy for the given providers.
func NewStrategy(redisClient *redis.Client, specs []ProviderSpec, logger zerolog.Logger) *Strategy {
	m := make(map[string]ProviderSpec, len(specs))
	for _, spec := range specs {
		if spec.CostWeight < 1 {
			spec.CostWeight = 1
		}
		m[spec.Name] = spec
	}
	return &Strategy{
		redis:  redisClient,
		specs:  m,
		logger: logger,
	}
}

// quotaKey is date-scoped: the daily reset is implicit via key rollover
// and expiry, no scheduled job needed.
func quotaKey(name string, now time.Time) string {
	return "bookmeta:quota:" + name + ":" + now.UTC().Format("2006-01-02")
}

func qualityKey(name string) string {
	return "bookmeta:quality:" + name
}

// Consume atomically counts one successful upstream call against the
// provider's daily quota.
func (s *Strategy) Consume(ctx context.Context, name string) error {
	key := quotaKey(name, time.Now())

	pipe := s.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, counterRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("consume quota for %s: %w", name, err)
	}

	quotaUsedGauge.WithLabelValues(name).Set(float64(incr.Val()))
	return nil
}

// UsedToday returns the provider's consumption in the current UTC day.
func (s *Strategy) UsedToday(ctx context.Context, name string) (int64, error) {
	used, err := s.redis.Get(ctx, quotaKey(name, time.Now())).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("get quota for %s: %w", name, err)
	}
	return used, nil
}

// Remaining returns the provider's remaining daily budget. Unmetered
// providers report -1.
func (s *Strategy) Remaining(ctx context.Context, name string) (int64, error) {
	spec, ok := s.specs[name]
	if !ok {
		return 0, fmt.Errorf("unknown provider %q", name)
	}
	if spec.DailyQuota <= 0 {
		return -1, nil
	}

	used, err := s.UsedToday(ctx, name)
	if err != nil {
		return 0, err
	}

	remaining := spec.DailyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Observe folds one call outcome into the provider's rolling quality
// score. Failures score 0; successes score by latency against the call
// budget. Lost updates under concurrency only bias the ranking slightly,
// so no transaction is taken.
func (s *Strategy) Observe(ctx context.Context, name string, success bool, latency time.Duration) {
	sample := 0.0
	if success {
		sample = 1 - latency.Seconds()/latencyBudget.Seconds()
		if sample < 0 {
			sample = 0
		}
		if sample > 1 {
			sample = 1
		}
	}

	current := s.Quality(ctx, name)
	updated := (1-qualityAlpha)*current + qualityAlpha*sample

	if err := s.redis.Set(ctx, qualityKey(name), strconv.FormatFloat(updated, 'f', 4, 64), 0).Err(); err != nil {
		s.logger.Warn().Err(err).Str("provider", name).Msg("Quality score update failed")
		return
	}

	qualityGauge.WithLabelValues(name).Set(updated)
	s.logger.Debug().
		Str("provider", name).
		Bool("success", success).
		Dur("latency", latency).
		Float64("quality", updated).
		Msg("Provider quality updated")
}

// Quality returns the provider's rolling quality score, or the default
// when no observations exist.
func (s *Strategy) Quality(ctx context.Context, name string) float64 {
	raw, err := s.redis.Get(ctx, qualityKey(name)).Result()
	if err != nil {
		return qualityDefault
	}
	q, err := strconv.ParseFloat(raw, 64)
	if err != nil || q < 0 || q > 1 {
		return qualityDefault
	}
	return q
}

// candidate is one provider's scoring input.
type candidate struct {
	name              string
	remainingFraction float64
	costWeight        float64
	quality           float64
	exhausted         bool
}

// score combines remaining headroom, inverse cost, and quality into the
// ranking score.
func score(c candidate) float64 {
	return weightRemaining*c.remainingFraction +
		weightCost*(1/c.costWeight) +
		weightQuality*c.quality
}

// rankCandidates orders providers by descending score. Exhausted
// providers are skipped entirely unless nothing else remains, in which
// case they are returned as the last resort.
func rankCandidates(candidates []candidate) []string {
	eligible := make([]candidate, 0, len(candidates))
	exhausted := make([]candidate, 0)
	for _, c := range candidates {
		if c.exhausted {
			exhausted = append(exhausted, c)
		} else {
			eligible = append(eligible, c)
		}
	}

	pool := eligible
	if len(pool) == 0 {
		pool = exhausted
	}

	sort.SliceStable(pool, func(i, j int) bool {
		si, sj := score(pool[i]), score(pool[j])
		if si != sj {
			return si > sj
		}
		return pool[i].name < pool[j].name
	})

	names := make([]string, len(pool))
	for i, c := range pool {
		names[i] = c.name
	}
	return names
}

// Rank produces the fallback order for the given providers, best first.
// The order is computed fresh per resolution so a provider nearing quota
// exhaustion slides down the chain as the day progresses.
func (s *Strategy) Rank(ctx context.Context, names []string) ([]string, error) {
	candidates := make([]candidate, 0, len(names))

	for _, name := range names {
		spec, ok := s.specs[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}

		c := candidate{
			name:       name,
			costWeight: spec.CostWeight,
			quality:    s.Quality(ctx, name),
		}

		if spec.DailyQuota <= 0 {
			c.remainingFraction = 1
		} else {
			used, err := s.UsedToday(ctx, name)
			if err != nil {
				return nil, err
			}
			remaining := spec.DailyQuota - used
			if remaining <= 0 {
				c.exhausted = true
			} else {
				c.remainingFraction = float64(remaining) / float64(spec.DailyQuota)
			}
		}

		candidates = append(candidates, c)
	}

	ranked := rankCandidates(candidates)
	s.logger.Debug().Strs("order", ranked).Msg("Provider fallback order computed")
	return ranked, nil
}
