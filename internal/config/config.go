// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// Config holds all application configuration
type Config struct {
	Port     string `env:"PORT" envDefault:"6688" validate:"required,numeric"`
	Cache    CacheConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Upstream UpstreamConfig
	Log      LogConfig
}

// CacheConfig holds the in-memory tier settings and the optional disk tier
type CacheConfig struct {
	TTL             time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	MaxEntries      int           `env:"CACHE_MAX_ENTRIES" envDefault:"100" validate:"gt=0"`
	JanitorInterval time.Duration `env:"CACHE_JANITOR_INTERVAL" envDefault:"1m"`
	Dir             string        `env:"CACHE_DIR"`
}

// RedisConfig holds the shared tier settings; an empty Addr disables it
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"500ms"`
	Prefix   string        `env:"REDIS_PREFIX" envDefault:"hotlist:"`
}

// QueueConfig holds the background refresh settings
type QueueConfig struct {
	// RedisAddr falls back to REDIS_ADDR
	RedisAddr    string        `env:"QUEUE_REDIS_ADDR"`
	WarmInterval time.Duration `env:"WARM_INTERVAL" envDefault:"30m"`
}

// UpstreamConfig holds outbound HTTP settings
type UpstreamConfig struct {
	Timeout   time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"6s"`
	Retries   int           `env:"UPSTREAM_RETRIES" envDefault:"1" validate:"gte=0,lte=5"`
	UserAgent string        `env:"UPSTREAM_USER_AGENT"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Queue.RedisAddr == "" {
		cfg.Queue.RedisAddr = cfg.Redis.Addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasRedis returns true if the shared Redis tier is configured
func (c *Config) HasRedis() bool {
	return c.Redis.Addr != ""
}

// HasDiskCache returns true if the disk tier is configured
func (c *Config) HasDiskCache() bool {
	return c.Cache.Dir != ""
}

// HasQueue returns true if background refresh can be enqueued
func (c *Config) HasQueue() bool {
	return c.Queue.RedisAddr != ""
}

// Validate checks value ranges that the parser cannot express
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Queue.WarmInterval <= 0 {
		return fmt.Errorf("WARM_INTERVAL must be positive, got %s", c.Queue.WarmInterval)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Log.Level, err)
	}
	return nil
}
