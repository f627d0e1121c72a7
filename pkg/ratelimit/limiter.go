// Package ratelimit implements per-caller request throttling over a
// shared Redis counter store. The window is fixed (not sliding): the
// counter expires with the window and the next request recreates it.
// The boundary burst a fixed window allows is an accepted approximation.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_rate_limit_checks_total",
		Help: "Total rate limit checks by outcome",
	}, []string{"outcome"}) // "allowed", "blocked"

	rateLimitReducedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookmeta_rate_limit_reduced_total",
		Help: "Total checks evaluated under the reduced automated-caller limit",
	})
)

// Default limits per fixed window.
const (
	// DefaultBaseLimit applies to interactive callers.
	DefaultBaseLimit = 100

	// DefaultBotLimit applies when the user-agent looks automated.
	// Risk-based tightening, not a blanket policy.
	DefaultBotLimit = 20

	// DefaultWindow is the fixed counting window.
	DefaultWindow = time.Hour
)

// botMarkers are user-agent substrings indicating automated callers.
var botMarkers = []string{
	"bot", "crawl", "spider", "curl", "wget",
	"python-requests", "go-http-client", "scrapy", "httpie",
}

// Caller identifies the source of a request for fingerprinting.
type Caller struct {
	IP        string
	UserAgent string
	// EdgeHop is the edge-hop identifier injected by the fronting proxy,
	// empty when the request arrived directly.
	EdgeHop string
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Current    int64
	Remaining  int64
	RetryAfter time.Duration
}

// Config holds limiter configuration.
type Config struct {
	BaseLimit int64
	BotLimit  int64
	Window    time.Duration
}

// DefaultConfig returns the reference limits: 100/hour, 20/hour for
// automated callers, fixed 1-hour window.
func DefaultConfig() Config {
	return Config{
		BaseLimit: DefaultBaseLimit,
		BotLimit:  DefaultBotLimit,
		Window:    DefaultWindow,
	}
}

// Limiter counts requests per caller fingerprint in Redis. All proxy
// instances share the same counters, so the limit holds across
// concurrently running instances.
type Limiter struct {
	redis  *redis.Client
	cfg    Config
	logger zerolog.Logger
}

// NewLimiter creates a rate limiter backed by the given Redis client.
func NewLimiter(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.BaseLimit <= 0 {
		cfg.BaseLimit = DefaultBaseLimit
	}
	if cfg.BotLimit <= 0 {
		cfg.BotLimit = DefaultBotLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{
		redis:  redisClient,
		cfg:    cfg,
		logger: logger,
	}
}

// Fingerprint derives the non-reversible caller identifier: a truncated
// one-way hash over IP, user-agent, and edge-hop id. Never reversible to
// PII.
func Fingerprint(c Caller) string {
	sum := sha256.Sum256([]byte(c.IP + "\n" + c.UserAgent + "\n" + c.EdgeHop))
	return hex.EncodeToString(sum[:])[:16]
}

// Check atomically counts the request and decides whether it is allowed.
// A Redis failure is returned as an error: counting must not silently
// fail open.
func (l *Limiter) Check(ctx context.Context, c Caller) (Decision, error) {
	fp := Fingerprint(c)
	key := "bookmeta:ratelimit:" + fp
	limit := l.limitFor(c.UserAgent)

	// INCR + first-writer EXPIRE: the window resets implicitly via the
	// store's own expiry.
	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.cfg.Window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	current := incr.Val()
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	retryAfter := ttl.Val()
	if retryAfter < 0 {
		retryAfter = l.cfg.Window
	}

	d := Decision{
		Allowed:    current <= limit,
		Limit:      limit,
		Current:    current,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}

	if d.Allowed {
		rateLimitChecksTotal.WithLabelValues("allowed").Inc()
	} else {
		rateLimitChecksTotal.WithLabelValues("blocked").Inc()
		l.logger.Warn().
			Str("fingerprint", fp).
			Int64("current", current).
			Int64("limit", limit).
			Dur("retry_after", retryAfter).
			Msg("Rate limit exceeded")
	}

	return d, nil
}

// limitFor selects the limit for a caller based on its user-agent.
func (l *Limiter) limitFor(userAgent string) int64 {
	if isAutomated(userAgent) {
		rateLimitReducedTotal.Inc()
		return l.cfg.BotLimit
	}
	return l.cfg.BaseLimit
}

// isAutomated reports whether a user-agent looks like a bot or tool:
// empty, generic, or carrying a known marker substring.
func isAutomated(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" || ua == "mozilla" || ua == "user-agent" {
		return true
	}
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
