// Package server exposes the resolution pipeline over HTTP: search,
// ISBN lookup, batch resolution, health, and metrics. All request
// normalization happens here, before the pipeline sees the input.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shelfmark/bookmeta/pkg/cache"
	"github.com/shelfmark/bookmeta/pkg/isbn"
	"github.com/shelfmark/bookmeta/pkg/provider"
	"github.com/shelfmark/bookmeta/pkg/resolve"
)

// QuotaReporter exposes provider headroom for the health endpoint.
// Implemented by quota.Strategy.
type QuotaReporter interface {
	Remaining(ctx context.Context, name string) (int64, error)
}

// Config holds the server's display and batch settings.
type Config struct {
	// BatchConcurrency is the worker count passed to batch resolution
	// when the request does not specify one.
	BatchConcurrency int

	// RequestsPerHour and AutomatedPerHour are surfaced on /health.
	RequestsPerHour  int64
	AutomatedPerHour int64
}

// Server wires the HTTP surface to the pipeline.
type Server struct {
	resolver *resolve.Resolver
	limiter  RateLimiter
	cache    *cache.Manager
	quota    QuotaReporter
	cfg      Config
	logger   zerolog.Logger
}

// New creates the HTTP server wiring.
func New(resolver *resolve.Resolver, limiter RateLimiter, cacheMgr *cache.Manager, quota QuotaReporter, cfg Config, logger zerolog.Logger) *Server {
	return &Server{
		resolver: resolver,
		limiter:  limiter,
		cache:    cacheMgr,
		quota:    quota,
		cfg:      cfg,
		logger:   logger,
	}
}

// Router builds the gin engine with the middleware chain and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(s.logger))

	// Health and metrics stay outside the rate limit: monitoring must
	// not consume caller budgets.
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("/", RateLimit(s.limiter))
	limited.GET("/search", s.handleSearch)
	limited.GET("/isbn", s.handleISBN)
	limited.POST("/batch", s.handleBatch)

	return router
}

func (s *Server) handleSearch(c *gin.Context) {
	query := cache.NormalizeQuery(c.Query("q"))
	if query == "" {
		writeError(c, http.StatusBadRequest, "missing query parameter q", nil)
		return
	}

	forced := c.Query("provider")
	if forced != "" && !s.resolver.HasProvider(forced) {
		writeError(c, http.StatusBadRequest, "unknown provider", gin.H{"provider": forced})
		return
	}

	opts := provider.SearchOptions{
		OrderBy:      c.Query("orderBy"),
		LangRestrict: c.Query("langRestrict"),
	}
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "maxResults must be a positive integer", nil)
			return
		}
		opts.MaxResults = n
	}

	out, err := s.resolver.Search(c.Request.Context(), resolve.SearchRequest{
		Query:    query,
		Opts:     opts,
		Provider: forced,
	})
	if err != nil {
		writeResolveError(c, err)
		return
	}

	writeEnvelope(c, out)
}

func (s *Server) handleISBN(c *gin.Context) {
	raw := c.Query("isbn")
	if raw == "" {
		writeError(c, http.StatusBadRequest, "missing query parameter isbn", nil)
		return
	}

	normalized, err := isbn.Normalize(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), gin.H{"isbn": raw})
		return
	}

	forced := c.Query("provider")
	if forced != "" && !s.resolver.HasProvider(forced) {
		writeError(c, http.StatusBadRequest, "unknown provider", gin.H{"provider": forced})
		return
	}

	out, err := s.resolver.LookupISBN(c.Request.Context(), normalized, forced)
	if err != nil {
		writeResolveError(c, err)
		return
	}

	writeEnvelope(c, out)
}

// batchRequest is the POST /batch body.
type batchRequest struct {
	ISBNs       []string `json:"isbns"`
	Provider    string   `json:"provider"`
	Concurrency int      `json:"concurrency"`
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if len(req.ISBNs) == 0 {
		writeError(c, http.StatusBadRequest, "isbns must not be empty", nil)
		return
	}

	if req.Provider != "" && !s.resolver.HasProvider(req.Provider) {
		writeError(c, http.StatusBadRequest, "unknown provider", gin.H{"provider": req.Provider})
		return
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.BatchConcurrency
	}

	outcomes, err := s.resolver.ResolveBatch(c.Request.Context(), req.ISBNs, req.Provider, concurrency)
	if err != nil {
		writeResolveError(c, err)
		return
	}

	results := make(map[string]batchItem, len(outcomes))
	for id, outcome := range outcomes {
		if outcome.Err != nil {
			results[id] = batchItem{Error: outcome.Err.Error(), Attempts: outcome.Attempts}
			continue
		}
		results[id] = batchItem{
			Items:          outcome.Result.Items,
			Provider:       outcome.Result.Provider,
			ProviderForced: outcome.Result.Forced,
			Attempts:       outcome.Attempts,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"requestId": requestID(c),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	tiers := make(map[string]string)
	healthy := true
	for name, err := range s.cache.Health(ctx) {
		if err != nil {
			tiers[name] = err.Error()
			healthy = false
		} else {
			tiers[name] = "ok"
		}
	}

	providers := make([]gin.H, 0, len(s.resolver.Providers()))
	for _, name := range s.resolver.Providers() {
		entry := gin.H{"name": name}
		remaining, err := s.quota.Remaining(ctx, name)
		if err != nil {
			entry["remainingQuota"] = "unknown"
		} else if remaining < 0 {
			entry["remainingQuota"] = "unmetered"
		} else {
			entry["remainingQuota"] = remaining
		}
		providers = append(providers, entry)
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":    state,
		"cache":     tiers,
		"providers": providers,
		"limits": gin.H{
			"requestsPerHour":  s.cfg.RequestsPerHour,
			"automatedPerHour": s.cfg.AutomatedPerHour,
		},
		"features": gin.H{
			"batch":            true,
			"cachePromotion":   true,
			"providerFallback": len(s.resolver.Providers()) > 1,
		},
	})
}
