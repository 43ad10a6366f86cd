// Package config provides centralized configuration management for FieldSync.
// Values are resolved in three layers: built-in defaults, an optional YAML
// config file, and FIELDSYNC_* environment variables.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Limiter LimiterConfig `mapstructure:"limiter" yaml:"limiter"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains the diagnostics HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RemoteConfig describes the upstream API that queued actions replay
// against. An empty BaseURL disables replay; actions stay queued.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// CacheConfig contains tiered cache TTL configuration.
//
// ExpiryPolicy selects how the fast tier tracks expiry for persisted
// entries: "durable" (the default) lets a persisted entry live in the fast
// tier until its durable expiry, trading TTL precision for fewer remote
// recomputations; "strict" honors the fast TTL exactly.
type CacheConfig struct {
	FastTTL      time.Duration `mapstructure:"fast_ttl" yaml:"fast_ttl"`
	DurableTTL   time.Duration `mapstructure:"durable_ttl" yaml:"durable_ttl"`
	ExpiryPolicy string        `mapstructure:"expiry_policy" yaml:"expiry_policy"`
}

// LimiterConfig contains outbound rate limiting configuration.
type LimiterConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxConcurrent     int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
}

// QueueConfig contains offline action queue configuration.
type QueueConfig struct {
	Capacity          int           `mapstructure:"capacity" yaml:"capacity"`
	ErrorLogCapacity  int           `mapstructure:"error_log_capacity" yaml:"error_log_capacity"`
	DefaultMaxRetries int           `mapstructure:"default_max_retries" yaml:"default_max_retries"`
	SyncInterval      time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}
