// Command bookmeta-proxy runs the book-metadata resolution proxy: a
// caching, rate-limited HTTP front for heterogeneous book-metadata
// providers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/shelfmark/bookmeta/pkg/cache"
	"github.com/shelfmark/bookmeta/pkg/config"
	"github.com/shelfmark/bookmeta/pkg/logging"
	"github.com/shelfmark/bookmeta/pkg/provider"
	"github.com/shelfmark/bookmeta/pkg/quota"
	"github.com/shelfmark/bookmeta/pkg/ratelimit"
	"github.com/shelfmark/bookmeta/pkg/resolve"
	"github.com/shelfmark/bookmeta/pkg/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bookmeta-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	boltDB, err := bolt.Open(cfg.Bolt.Path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("open bolt database %s: %w", cfg.Bolt.Path, err)
	}
	defer boltDB.Close()

	boltTier, err := cache.NewBoltTier(boltDB)
	if err != nil {
		return fmt.Errorf("init bolt cache tier: %w", err)
	}

	cacheMgr := cache.NewManager(
		logging.NewLogger("cache"),
		cfg.Cache.PromoteTTL,
		cache.NewRedisTier(redisClient),
		boltTier,
	)

	clients, specs, err := buildProviders(cfg.Providers)
	if err != nil {
		return err
	}

	strategy := quota.NewStrategy(redisClient, specs, logging.NewLogger("quota"))

	resolver := resolve.New(cacheMgr, strategy, clients, resolve.Config{
		CallTimeout: cfg.Resolve.CallTimeout,
		SearchTTL:   cfg.Cache.SearchTTL,
		ISBNTTL:     cfg.Cache.ISBNTTL,
	}, logging.NewLogger("resolve"))

	limiter := ratelimit.NewLimiter(redisClient, ratelimit.Config{
		BaseLimit: cfg.RateLimit.RequestsPerHour,
		BotLimit:  cfg.RateLimit.AutomatedPerHour,
		Window:    cfg.RateLimit.Window,
	}, logging.NewLogger("ratelimit"))

	srv := server.New(resolver, limiter, cacheMgr, strategy, server.Config{
		BatchConcurrency: cfg.Resolve.BatchConcurrency,
		RequestsPerHour:  cfg.RateLimit.RequestsPerHour,
		AutomatedPerHour: cfg.RateLimit.AutomatedPerHour,
	}, logging.NewLogger("server"))

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Listen).
			Strs("providers", resolver.Providers()).
			Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// buildProviders instantiates the configured provider clients and their
// quota specs. Unknown provider names are a configuration error.
func buildProviders(configs []config.ProviderConfig) ([]provider.Client, []quota.ProviderSpec, error) {
	clients := make([]provider.Client, 0, len(configs))
	specs := make([]quota.ProviderSpec, 0, len(configs))

	for _, pc := range configs {
		pcfg := provider.Config{
			BaseURL:           pc.BaseURL,
			RequestsPerSecond: pc.RequestsPerSecond,
		}

		var client provider.Client
		switch pc.Name {
		case "googlebooks":
			client = provider.NewGoogleBooks(pcfg)
		case "openlibrary":
			client = provider.NewOpenLibrary(pcfg)
		default:
			return nil, nil, fmt.Errorf("unknown provider %q in config", pc.Name)
		}

		clients = append(clients, client)
		specs = append(specs, quota.ProviderSpec{
			Name:       pc.Name,
			DailyQuota: pc.DailyQuota,
			CostWeight: pc.CostWeight,
		})
	}

	return clients, specs, nil
}
