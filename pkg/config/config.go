// Package config loads proxy configuration from an optional YAML file
// and BOOKMETA_-prefixed environment variables, with environment taking
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all proxy configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `mapstructure:"listen"`

	Log       LogConfig        `mapstructure:"log"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Bolt      BoltConfig       `mapstructure:"bolt"`
	Cache     CacheConfig      `mapstructure:"cache"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Resolve   ResolveConfig    `mapstructure:"resolve"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// RedisConfig locates the hot cache tier and counter store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BoltConfig locates the durable cold cache tier.
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds cache lifetimes.
type CacheConfig struct {
	SearchTTL  time.Duration `mapstructure:"search_ttl"`
	ISBNTTL    time.Duration `mapstructure:"isbn_ttl"`
	PromoteTTL time.Duration `mapstructure:"promote_ttl"`
}

// RateLimitConfig holds per-caller request budgets.
type RateLimitConfig struct {
	RequestsPerHour  int64         `mapstructure:"requests_per_hour"`
	AutomatedPerHour int64         `mapstructure:"automated_per_hour"`
	Window           time.Duration `mapstructure:"window"`
}

// ResolveConfig tunes the resolution pipeline.
type ResolveConfig struct {
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
}

// ProviderConfig describes one upstream provider. Name must be a
// registered client ("googlebooks", "openlibrary").
type ProviderConfig struct {
	Name              string  `mapstructure:"name"`
	BaseURL           string  `mapstructure:"base_url"`
	DailyQuota        int64   `mapstructure:"daily_quota"`
	CostWeight        float64 `mapstructure:"cost_weight"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("bolt.path", "bookmeta.db")
	v.SetDefault("cache.search_ttl", 24*time.Hour)
	v.SetDefault("cache.isbn_ttl", 365*24*time.Hour)
	v.SetDefault("cache.promote_ttl", 24*time.Hour)
	v.SetDefault("rate_limit.requests_per_hour", 100)
	v.SetDefault("rate_limit.automated_per_hour", 20)
	v.SetDefault("rate_limit.window", time.Hour)
	v.SetDefault("resolve.call_timeout", 5*time.Second)
	v.SetDefault("resolve.batch_concurrency", 3)
}

// Load reads configuration from the given YAML file (optional, empty
// path skips the file) and the environment. BOOKMETA_LOG_LEVEL
// overrides log.level, and so on.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOOKMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = defaultProviders()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultProviders is the out-of-the-box provider set: Google Books
// first, Open Library as the free unmetered fallback.
func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "googlebooks", DailyQuota: 1000, CostWeight: 2, RequestsPerSecond: 5},
		{Name: "openlibrary", DailyQuota: 0, CostWeight: 1, RequestsPerSecond: 2},
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	if c.RateLimit.RequestsPerHour <= 0 {
		return fmt.Errorf("rate_limit.requests_per_hour must be positive")
	}
	if c.Resolve.BatchConcurrency <= 0 {
		return fmt.Errorf("resolve.batch_concurrency must be positive")
	}
	return nil
}
