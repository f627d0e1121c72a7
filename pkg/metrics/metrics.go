// Package metrics provides the centralized Prometheus metrics reference
// for the bookmeta proxy. All metrics are defined in their respective
// packages (cache, ratelimit, provider, quota, resolve) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy. All
// metrics are automatically registered via promauto in their respective
// packages and exposed on GET /metrics.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - bookmeta_cache_hits_total{tier} (Counter): Cache hits by tier
//   - bookmeta_cache_misses_total (Counter): Full-chain cache misses
//   - bookmeta_cache_promotions_total{from} (Counter): Entries promoted out of a colder tier
//   - bookmeta_cache_errors_total{tier, operation} (Counter): Tier operation errors
//   - bookmeta_cache_expired_evictions_total{tier} (Counter): Expired entries lazily evicted
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bookmeta_rate_limit_checks_total{outcome} (Counter): Checks by outcome (allowed, blocked)
//   - bookmeta_rate_limit_reduced_total (Counter): Checks under the automated-caller limit
//
// Provider Metrics (pkg/provider):
//   - bookmeta_provider_requests_total{provider, operation, status} (Counter): Upstream requests
//   - bookmeta_provider_request_duration_seconds{provider, operation} (Histogram): Upstream latency
//
// Quota Metrics (pkg/quota):
//   - bookmeta_provider_quota_used{provider} (Gauge): Quota consumed in the current UTC day
//   - bookmeta_provider_quality_score{provider} (Gauge): Rolling quality score (0-1)
//
// Resolution Metrics (pkg/resolve):
//   - bookmeta_resolutions_total{kind, status} (Counter): Resolutions by kind and status
//     (hit, miss, not_found, failed)
//   - bookmeta_fallback_attempts{kind} (Histogram): Providers attempted per fallback resolution
//   - bookmeta_batch_items_total{outcome} (Counter): Batch items by outcome
//   - bookmeta_batch_size (Histogram): Distinct ISBNs per accepted batch
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(bookmeta_cache_hits_total[5m])) /
//   (sum(rate(bookmeta_cache_hits_total[5m])) + sum(rate(bookmeta_cache_misses_total[5m])))
//
//   # Provider Error Rate
//   sum(rate(bookmeta_provider_requests_total{status!~"2.."}[5m])) by (provider)
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(bookmeta_provider_request_duration_seconds_bucket[5m]))
//
//   # Quota Headroom Alert
//   bookmeta_provider_quota_used > 900
//
//   # Blocked Caller Rate
//   rate(bookmeta_rate_limit_checks_total{outcome="blocked"}[5m])
