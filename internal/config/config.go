// Package config loads the marketplace-sync configuration.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MARKETSYNC_MARKETPLACE_TOKEN.
const EnvPrefix = "MARKETSYNC"

// Config holds all configuration
type Config struct {
	Marketplace MarketplaceConfig
	Retry       RetryConfig
	Rate        RateConfig
	Enrichment  EnrichmentConfig
	Store       StoreConfig
	Redis       RedisConfig
	Server      ServerConfig
	Log         LogConfig
}

// MarketplaceConfig holds the upstream API settings
type MarketplaceConfig struct {
	BaseURL      string
	Token        string
	ShopIDs      []int64
	PageSize     int
	HistoryStart time.Time
	MaxPages     int
	PageTimeout  time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// RetryConfig holds the rate-limit retry settings
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RateConfig holds client-side pacing
type RateConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// EnrichmentConfig holds stock enrichment settings
type EnrichmentConfig struct {
	Concurrency   int
	LookupTimeout time.Duration

	// CacheTTL enables the Redis stock cache; 0 keeps every lookup live.
	CacheTTL time.Duration
}

// StoreConfig holds dataset persistence settings
type StoreConfig struct {
	Backend      string // file | pebble
	Format       string // json | yaml
	OrdersPath   string
	ProductsPath string
	PebbleDir    string
}

// RedisConfig holds the optional Redis connection; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether Redis-backed features are configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// ServerConfig holds the trigger surface settings
type ServerConfig struct {
	Addr string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from file and environment.
// Priority (highest to lowest):
// 1. Environment variables with MARKETSYNC_ prefix (e.g., MARKETSYNC_MARKETPLACE_TOKEN)
// 2. the config file (path, or marketsync.yaml in . or ./configs)
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marketsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	shopIDs, err := parseShopIDs(v.GetStringSlice("marketplace.shop_ids"))
	if err != nil {
		return nil, err
	}
	historyStart, err := parseDate(v.GetString("marketplace.history_start"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Marketplace: MarketplaceConfig{
			BaseURL:      v.GetString("marketplace.base_url"),
			Token:        v.GetString("marketplace.token"),
			ShopIDs:      shopIDs,
			PageSize:     v.GetInt("marketplace.page_size"),
			HistoryStart: historyStart,
			MaxPages:     v.GetInt("marketplace.max_pages"),
			PageTimeout:  v.GetDuration("marketplace.page_timeout"),
			Timeout:      v.GetDuration("marketplace.timeout"),
			UserAgent:    v.GetString("marketplace.user_agent"),
		},
		Retry: RetryConfig{
			MaxAttempts:    v.GetInt("retry.max_attempts"),
			InitialBackoff: v.GetDuration("retry.initial_backoff"),
			MaxBackoff:     v.GetDuration("retry.max_backoff"),
		},
		Rate: RateConfig{
			RequestsPerSecond: v.GetFloat64("rate.requests_per_second"),
			Burst:             v.GetInt("rate.burst"),
		},
		Enrichment: EnrichmentConfig{
			Concurrency:   v.GetInt("enrichment.concurrency"),
			CacheTTL:      v.GetDuration("enrichment.cache_ttl"),
			LookupTimeout: v.GetDuration("enrichment.lookup_timeout"),
		},
		Store: StoreConfig{
			Backend:      v.GetString("store.backend"),
			Format:       v.GetString("store.format"),
			OrdersPath:   v.GetString("store.orders_path"),
			ProductsPath: v.GetString("store.products_path"),
			PebbleDir:    v.GetString("store.pebble_dir"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}

	applyDefaults(cfg, time.Now())

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config, now time.Time) {
	if cfg.Marketplace.PageSize <= 0 {
		cfg.Marketplace.PageSize = 50
	}
	if cfg.Marketplace.HistoryStart.IsZero() {
		cfg.Marketplace.HistoryStart = now.AddDate(-1, 0, 0)
	}
	if cfg.Marketplace.MaxPages <= 0 {
		cfg.Marketplace.MaxPages = 100
	}
	if cfg.Marketplace.PageTimeout <= 0 {
		cfg.Marketplace.PageTimeout = 30 * time.Second
	}
	if cfg.Marketplace.Timeout <= 0 {
		cfg.Marketplace.Timeout = 30 * time.Second
	}
	if cfg.Marketplace.UserAgent == "" {
		cfg.Marketplace.UserAgent = "marketplace-sync/1.0"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}
	if cfg.Rate.Burst <= 0 {
		cfg.Rate.Burst = 5
	}
	if cfg.Enrichment.Concurrency <= 0 {
		cfg.Enrichment.Concurrency = 8
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Format == "" {
		cfg.Store.Format = "json"
	}
	if cfg.Store.OrdersPath == "" {
		cfg.Store.OrdersPath = "data/orders." + cfg.Store.Format
	}
	if cfg.Store.ProductsPath == "" {
		cfg.Store.ProductsPath = "data/products." + cfg.Store.Format
	}
	if cfg.Store.PebbleDir == "" {
		cfg.Store.PebbleDir = "data/pebble"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Marketplace.BaseURL == "" {
		return fmt.Errorf("marketplace.base_url is required")
	}
	if c.Marketplace.Token == "" {
		return fmt.Errorf("marketplace.token is required")
	}
	if c.Rate.RequestsPerSecond < 0 {
		return fmt.Errorf("rate.requests_per_second cannot be negative")
	}
	if c.Enrichment.CacheTTL < 0 {
		return fmt.Errorf("enrichment.cache_ttl cannot be negative")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry.max_backoff (%s) cannot be below retry.initial_backoff (%s)",
			c.Retry.MaxBackoff, c.Retry.InitialBackoff)
	}
	switch c.Store.Backend {
	case "file", "pebble":
	default:
		return fmt.Errorf("store.backend must be file or pebble, got %q", c.Store.Backend)
	}
	switch c.Store.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("store.format must be json or yaml, got %q", c.Store.Format)
	}
	return nil
}

// parseShopIDs accepts a YAML list or a comma separated env value.
func parseShopIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("marketplace.shop_ids: invalid shop id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("marketplace.history_start: invalid date %q", s)
	}
	return t, nil
}
