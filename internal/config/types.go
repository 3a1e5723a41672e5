// Package config loads the Config struct from YAML + environment overrides
// with github.com/spf13/viper, watches the file with github.com/fsnotify/fsnotify,
// and validates it eagerly. Field groups cover ProxyWhirl's own domain:
// selection strategy, retry policy, rate limiting, dispatch, metrics, and
// session affinity.
package config

import "time"

// Config holds every enumerated configuration input in spec §6.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy" mapstructure:"strategy"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Dispatcher DispatcherConfig `yaml:"dispatcher" mapstructure:"dispatcher"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// StrategyConfig selects the active selection strategy and its tunables.
type StrategyConfig struct {
	Name                string  `yaml:"name" mapstructure:"name"`
	WeightedGamma       float64 `yaml:"weighted_gamma" mapstructure:"weighted_gamma"`
	WeightedEpsilon     float64 `yaml:"weighted_epsilon" mapstructure:"weighted_epsilon"`
	RegionalBonus       float64 `yaml:"regional_bonus" mapstructure:"regional_bonus"`
	GeoFallbackEnabled  bool    `yaml:"geo_fallback_enabled" mapstructure:"geo_fallback_enabled"`
}

// RetryConfig mirrors domain.RetryPolicy's enumerated fields, plus the
// per-proxy circuit breaker parameters (spec §3).
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff           string        `yaml:"backoff" mapstructure:"backoff"`
	BaseDelay         time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	Multiplier        float64       `yaml:"multiplier" mapstructure:"multiplier"`
	MaxDelay          time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	JitterRatio       float64       `yaml:"jitter_ratio" mapstructure:"jitter_ratio"`
	TotalTimeout      time.Duration `yaml:"total_timeout" mapstructure:"total_timeout"`
	RetryStatusCodes  []int         `yaml:"retry_status_codes" mapstructure:"retry_status_codes"`
	IdempotentMethods []string      `yaml:"idempotent_methods" mapstructure:"idempotent_methods"`

	BreakerFailureThreshold   int           `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerWindowDuration     time.Duration `yaml:"breaker_window_duration" mapstructure:"breaker_window_duration"`
	BreakerTimeoutDuration    time.Duration `yaml:"breaker_timeout_duration" mapstructure:"breaker_timeout_duration"`
	BreakerHalfOpenProbeLimit int           `yaml:"breaker_half_open_probe_limit" mapstructure:"breaker_half_open_probe_limit"`

	EMAAlpha    float64       `yaml:"ema_alpha" mapstructure:"ema_alpha"`
	StatsWindow time.Duration `yaml:"stats_window" mapstructure:"stats_window"`
}

// RateLimitConfig mirrors domain.RateLimitConfig (spec §4.4).
type RateLimitConfig struct {
	Enabled      bool              `yaml:"enabled" mapstructure:"enabled"`
	DefaultTier  string            `yaml:"default_tier" mapstructure:"default_tier"`
	Tiers        []RateLimitTier   `yaml:"tiers" mapstructure:"tiers"`
	Whitelist    []string          `yaml:"whitelist" mapstructure:"whitelist"`
	RedisURL     string            `yaml:"redis_url" mapstructure:"redis_url"`
	RedisPrefix  string            `yaml:"redis_key_prefix" mapstructure:"redis_key_prefix"`
	RedisTimeout time.Duration     `yaml:"redis_timeout" mapstructure:"redis_timeout"`
}

// RateLimitTier is one named tier with per-endpoint overrides.
type RateLimitTier struct {
	Name              string         `yaml:"name" mapstructure:"name"`
	RequestsPerWindow int            `yaml:"requests_per_window" mapstructure:"requests_per_window"`
	WindowSizeSeconds int            `yaml:"window_size_seconds" mapstructure:"window_size_seconds"`
	Endpoints         map[string]int `yaml:"endpoints" mapstructure:"endpoints"`
}

// DispatcherConfig covers the HTTP/SOCKS dispatch contract (spec §4.6).
type DispatcherConfig struct {
	AttemptTimeout     time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// MetricsConfig covers the attempt-event aggregator (spec §4.7).
type MetricsConfig struct {
	RetentionHours int `yaml:"retention_hours" mapstructure:"retention_hours"`
}

// SessionConfig covers the session_persistence strategy's affinity TTL.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LoggingConfig configures the slog + pterm + lumberjack logger.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}
