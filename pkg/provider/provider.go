// Package provider implements the uniform client interface over
// heterogeneous book-metadata upstreams. Every client exposes the same
// two capabilities (free-text search and ISBN lookup) and reports
// failures through a shared error classification, so orchestration stays
// provider-agnostic.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_provider_requests_total",
		Help: "Total upstream provider requests by provider, operation, and status",
	}, []string{"provider", "operation", "status"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookmeta_provider_request_duration_seconds",
		Help:    "Upstream provider request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"provider", "operation"})
)

// userAgent identifies this proxy to upstream APIs.
const userAgent = "bookmeta-proxy/1.0 (+https://github.com/shelfmark/bookmeta)"

// BookRecord is a normalized book metadata record. When an ISBN is
// present it is the natural key for de-duplication across providers;
// otherwise identity is provider-scoped.
type BookRecord struct {
	ISBN           string   `json:"isbn,omitempty"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	PublishedDate  string   `json:"publishedDate,omitempty"`
	CoverURL       string   `json:"coverUrl,omitempty"`
	Description    string   `json:"description,omitempty"`
	Language       string   `json:"language,omitempty"`
	SourceProvider string   `json:"sourceProvider"`
}

// Result is the outcome of a single provider invocation. Ephemeral:
// never persisted, only cached as the resolved payload.
type Result struct {
	Provider  string       `json:"provider"`
	Items     []BookRecord `json:"items"`
	LatencyMs int64        `json:"latencyMs"`
	Forced    bool         `json:"providerForced"`
}

// SearchOptions are the caller-tunable search parameters.
type SearchOptions struct {
	// MaxResults bounds the result count (1..40, provider default when 0).
	MaxResults int

	// OrderBy is "relevance" (default) or "newest".
	OrderBy string

	// LangRestrict restricts results to a language code.
	LangRestrict string
}

// Client is the uniform capability interface all upstream providers
// implement. Queries passed to Search are already normalized; clients
// must never re-wrap them with identifier-scheme prefixes.
type Client interface {
	// Name returns the provider identifier used in configuration, cache
	// keys, and response envelopes.
	Name() string

	// Search performs a free-text search.
	Search(ctx context.Context, query string, opts SearchOptions) (*Result, error)

	// LookupISBN resolves a single normalized ISBN.
	LookupISBN(ctx context.Context, isbn string) (*Result, error)
}

// Config holds shared upstream client configuration.
type Config struct {
	// BaseURL overrides the provider's default API root (for testing).
	BaseURL string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// RequestsPerSecond is the client-side politeness throttle applied
	// before every upstream call. 0 disables throttling.
	RequestsPerSecond float64
}

// httpClient returns the configured or default HTTP client. The 10s
// transport timeout is a safety net; per-call deadlines come from the
// caller's context.
func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// politeness returns the client-side throttle, or nil when disabled.
func (c Config) politeness() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
}

// getJSON performs a throttled GET against an upstream API and decodes
// the JSON response, converting every failure mode into an UpstreamError.
func getJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, providerName, operation, url string, out interface{}) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &UpstreamError{Provider: providerName, Class: ErrorClassNetwork, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	providerRequestDuration.WithLabelValues(providerName, operation).Observe(time.Since(start).Seconds())

	if err != nil {
		providerRequestsTotal.WithLabelValues(providerName, operation, "network_error").Inc()
		return &UpstreamError{Provider: providerName, Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	providerRequestsTotal.WithLabelValues(providerName, operation, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Provider: providerName, Class: ErrorClassPayload, Err: err}
	}

	return nil
}
