// Package config loads application configuration from config.toml and
// TSH_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	KVStore   KVStoreConfig
	ERP       ERPConfig
	Stock     StockConfig
	Pricing   PricingConfig
	Catalog   CatalogConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// KVStoreConfig selects and configures the shared cache backend.
type KVStoreConfig struct {
	// Driver is "redis" for a directly reachable instance or "rest" for an
	// HTTP-proxied one (serverless platforms without raw TCP).
	Driver string
	Redis  RedisConfig
	REST   RESTStoreConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RESTStoreConfig holds the HTTP cache proxy settings.
type RESTStoreConfig struct {
	BaseURL string
	Token   string
}

// ERPConfig holds the backing ERP credentials and endpoints.
type ERPConfig struct {
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	OrgID             string
	LedgerBaseURL     string
	InventoryBaseURL  string
	AuthURL           string
	WarehouseID       string
	TimeoutSeconds    int
	RequestsPerMinute int
	MaxRateLimitRetry int
}

// StockConfig holds the stock reconciliation cache settings.
type StockConfig struct {
	CacheTTL        time.Duration
	LockTTL         time.Duration
	BatchSize       int
	InterBatchDelay time.Duration
}

// PricingConfig holds the price resolution settings.
type PricingConfig struct {
	CacheTTL    time.Duration
	BatchSize   int
	Concurrency int
	Currency    string
}

// CatalogConfig holds the product metadata cache settings.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// SchedulerConfig holds the background stock sync trigger settings.
type SchedulerConfig struct {
	Enabled       bool
	CheckInterval time.Duration
}

// Load reads configuration with the following priority (highest first):
// 1. Environment variables with TSH_ prefix (e.g. TSH_ERP_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, env vars and defaults carry it.
	}

	v.SetEnvPrefix("TSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		KVStore: KVStoreConfig{
			Driver: v.GetString("kvstore.driver"),
			Redis: RedisConfig{
				Host:     v.GetString("kvstore.redis.host"),
				Port:     v.GetInt("kvstore.redis.port"),
				Password: v.GetString("kvstore.redis.password"),
				DB:       v.GetInt("kvstore.redis.db"),
			},
			REST: RESTStoreConfig{
				BaseURL: v.GetString("kvstore.rest.base_url"),
				Token:   v.GetString("kvstore.rest.token"),
			},
		},
		ERP: ERPConfig{
			ClientID:          v.GetString("erp.client_id"),
			ClientSecret:      v.GetString("erp.client_secret"),
			RefreshToken:      v.GetString("erp.refresh_token"),
			OrgID:             v.GetString("erp.org_id"),
			LedgerBaseURL:     v.GetString("erp.ledger_base_url"),
			InventoryBaseURL:  v.GetString("erp.inventory_base_url"),
			AuthURL:           v.GetString("erp.auth_url"),
			WarehouseID:       v.GetString("erp.warehouse_id"),
			TimeoutSeconds:    v.GetInt("erp.timeout_seconds"),
			RequestsPerMinute: v.GetInt("erp.requests_per_minute"),
			MaxRateLimitRetry: v.GetInt("erp.max_rate_limit_retry"),
		},
		Stock: StockConfig{
			CacheTTL:        v.GetDuration("stock.cache_ttl"),
			LockTTL:         v.GetDuration("stock.lock_ttl"),
			BatchSize:       v.GetInt("stock.batch_size"),
			InterBatchDelay: v.GetDuration("stock.inter_batch_delay"),
		},
		Pricing: PricingConfig{
			CacheTTL:    v.GetDuration("pricing.cache_ttl"),
			BatchSize:   v.GetInt("pricing.batch_size"),
			Concurrency: v.GetInt("pricing.concurrency"),
			Currency:    v.GetString("pricing.currency"),
		},
		Catalog: CatalogConfig{
			CacheTTL: v.GetDuration("catalog.cache_ttl"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			CheckInterval: v.GetDuration("scheduler.check_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Sync runs answer on this server; give them room.
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.KVStore.Driver == "" {
		cfg.KVStore.Driver = "redis"
	}
	if cfg.KVStore.Redis.Host == "" {
		cfg.KVStore.Redis.Host = "localhost"
	}
	if cfg.KVStore.Redis.Port == 0 {
		cfg.KVStore.Redis.Port = 6379
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = 5 * time.Minute
	}
	// Stock/Pricing/Catalog zero values fall through to the package-level
	// defaults applied by their constructors.
}

// validate fails fast on configuration the application cannot run with.
func (c *Config) validate() error {
	switch c.KVStore.Driver {
	case "redis":
		// Host/port defaults make redis always constructible.
	case "rest":
		if c.KVStore.REST.BaseURL == "" {
			return fmt.Errorf("kvstore.rest.base_url is required with the rest driver")
		}
	default:
		return fmt.Errorf("kvstore.driver must be redis or rest, got %q", c.KVStore.Driver)
	}

	if c.ERP.ClientID == "" {
		return fmt.Errorf("erp.client_id is required")
	}
	if c.ERP.ClientSecret == "" {
		return fmt.Errorf("erp.client_secret is required")
	}
	if c.ERP.RefreshToken == "" {
		return fmt.Errorf("erp.refresh_token is required")
	}
	if c.ERP.OrgID == "" {
		return fmt.Errorf("erp.org_id is required")
	}
	if c.ERP.WarehouseID == "" {
		return fmt.Errorf("erp.warehouse_id is required")
	}
	return nil
}

// RedisAddr returns the host:port address for the Redis client.
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
