// Package config loads the listing-sync service configuration.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file, a .env file and LISTING_* environment variables (dots become
// underscores, e.g. LISTING_UPSTREAM_API_KEY). EASYBROKER_API_KEY is also
// accepted for the upstream key.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/client"
	"github.com/Sternrassler/listing-sync/pkg/logging"
	"github.com/Sternrassler/listing-sync/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "LISTING"

// Config represents the complete service configuration
type Config struct {
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Server     ServerConfig     `mapstructure:"server"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
}

// UpstreamConfig contains the listing provider connection settings
type UpstreamConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	AuthHeader      string        `mapstructure:"auth_header"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	Burst           int           `mapstructure:"burst"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// PaginationConfig contains aggregation limits
type PaginationConfig struct {
	MaxPages        int           `mapstructure:"max_pages"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
	Budget          time.Duration `mapstructure:"budget"`
	Policy          string        `mapstructure:"policy"`
}

// CacheConfig contains snapshot cache settings
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MemorySize int           `mapstructure:"memory_size"`
	Shared     bool          `mapstructure:"shared"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SyncConfig contains scheduled warmup settings
type SyncConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	Concurrency int           `mapstructure:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	OnStart     bool          `mapstructure:"on_start"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration. configFile may be empty; envFile is loaded when
// present and ignored when missing.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Upstream defaults
	v.SetDefault("upstream.base_url", client.DefaultBaseURL)
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.auth_header", "X-Authorization")
	v.SetDefault("upstream.user_agent", "listing-sync/0.1.0")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.rate_limit", 20)
	v.SetDefault("upstream.burst", 5)
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.initial_backoff", "1s")
	v.SetDefault("upstream.max_backoff", "30s")
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_cooldown", "30s")

	// Pagination defaults
	v.SetDefault("pagination.max_pages", 200)
	v.SetDefault("pagination.max_page_size", 50)
	v.SetDefault("pagination.default_page_size", 20)
	v.SetDefault("pagination.page_timeout", "10s")
	v.SetDefault("pagination.budget", "2m")
	v.SetDefault("pagination.policy", string(pagination.PolicyBestEffort))

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.memory_size", 256)
	v.SetDefault("cache.shared", false)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "3m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Sync defaults
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.schedule", "*/15 * * * *")
	v.SetDefault("sync.concurrency", 2)
	v.SetDefault("sync.job_timeout", "5m")
	v.SetDefault("sync.on_start", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("upstream.api_key", "LISTING_UPSTREAM_API_KEY", "EASYBROKER_API_KEY")
	_ = v.BindEnv("redis.address", "LISTING_REDIS_ADDRESS", "REDIS_ADDR")
}

// Validate checks value ranges. The upstream key is checked by the client.
func (c *Config) Validate() error {
	var errs []error

	if c.Pagination.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("pagination.max_pages must be > 0 (got %d)", c.Pagination.MaxPages))
	}
	if c.Pagination.MaxPageSize <= 0 {
		errs = append(errs, fmt.Errorf("pagination.max_page_size must be > 0 (got %d)", c.Pagination.MaxPageSize))
	}
	if c.Pagination.DefaultPageSize <= 0 || c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		errs = append(errs, fmt.Errorf("pagination.default_page_size must be in 1..%d (got %d)",
			c.Pagination.MaxPageSize, c.Pagination.DefaultPageSize))
	}
	switch pagination.Policy(c.Pagination.Policy) {
	case pagination.PolicyBestEffort, pagination.PolicyFailFast:
	default:
		errs = append(errs, fmt.Errorf("pagination.policy must be %q or %q (got %q)",
			pagination.PolicyBestEffort, pagination.PolicyFailFast, c.Pagination.Policy))
	}
	if c.Cache.Enabled && c.Cache.MemorySize <= 0 {
		errs = append(errs, fmt.Errorf("cache.memory_size must be > 0 (got %d)", c.Cache.MemorySize))
	}
	if c.Cache.Shared && c.Redis.Address == "" {
		errs = append(errs, errors.New("cache.shared requires redis.address"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port))
	}
	if c.Sync.Enabled && c.Sync.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be > 0 (got %d)", c.Sync.Concurrency))
	}

	return errors.Join(errs...)
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}

// RedisOptions returns go-redis options for the configured server.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Address,
		Password:    c.Redis.Password,
		DB:          c.Redis.Database,
		DialTimeout: c.Redis.DialTimeout,
	}
}

// ClientConfig returns the upstream client configuration.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	u := c.Upstream
	return client.Config{
		BaseURL:         u.BaseURL,
		APIKey:          u.APIKey,
		AuthHeader:      u.AuthHeader,
		UserAgent:       u.UserAgent,
		Timeout:         u.Timeout,
		RateLimit:       u.RateLimit,
		Burst:           u.Burst,
		MaxRetries:      u.MaxRetries,
		InitialBackoff:  u.InitialBackoff,
		MaxBackoff:      u.MaxBackoff,
		BreakerFailures: u.BreakerFailures,
		BreakerCooldown: u.BreakerCooldown,
		Redis:           rdb,
	}
}

// AggregatorConfig returns the pagination configuration.
func (c *Config) AggregatorConfig() pagination.Config {
	p := c.Pagination
	return pagination.Config{
		MaxPages:        p.MaxPages,
		MaxPageSize:     p.MaxPageSize,
		DefaultPageSize: p.DefaultPageSize,
		PageTimeout:     p.PageTimeout,
		Budget:          p.Budget,
		Policy:          pagination.Policy(p.Policy),
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
