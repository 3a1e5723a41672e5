package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	envPrefix = "PROXYWHIRL"

	// debounceWindow guards against rapid-fire reload callbacks when an
	// editor issues several filesystem events for one logical save.
	debounceWindow = 500 * time.Millisecond

	// fileWriteDelay guards against an early-fire fsnotify event observed on
	// some platforms before the write actually finishes.
	fileWriteDelay = 150 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// Default returns the spec §3/§4 default configuration.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Name:               "round_robin",
			WeightedGamma:      1.0,
			WeightedEpsilon:    0.05,
			RegionalBonus:      0.10,
			GeoFallbackEnabled: true,
		},
		Retry: RetryConfig{
			MaxAttempts:               3,
			Backoff:                   "exponential",
			BaseDelay:                 1 * time.Second,
			Multiplier:                2,
			MaxDelay:                  10 * time.Second,
			JitterRatio:               0.1,
			RetryStatusCodes:          []int{502, 503, 504},
			IdempotentMethods:         []string{"GET", "HEAD", "OPTIONS"},
			BreakerFailureThreshold:   5,
			BreakerWindowDuration:     60 * time.Second,
			BreakerTimeoutDuration:    30 * time.Second,
			BreakerHalfOpenProbeLimit: 1,
			EMAAlpha:                  0.2,
			StatsWindow:               5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:     false,
			DefaultTier: "default",
			Tiers: []RateLimitTier{
				{Name: "default", RequestsPerWindow: 100, WindowSizeSeconds: 60},
			},
		},
		Dispatcher: DispatcherConfig{
			AttemptTimeout:     30 * time.Second,
			InsecureSkipVerify: false,
		},
		Metrics: MetricsConfig{
			RetentionHours: 24,
		},
		Session: SessionConfig{
			TTL: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads config.yaml (or $PROXYWHIRL_CONFIG_FILE), overlays
// PROXYWHIRL_-prefixed environment variables, validates the result, and —
// if onConfigChange is non-nil — watches the file for further edits.
func Load(onConfigChange func(*Config)) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv(envPrefix + "_CONFIG_FILE"); configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if onConfigChange != nil {
		v.WatchConfig()
		v.OnConfigChange(func(_ fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < debounceWindow {
				return
			}
			lastReload = now

			time.Sleep(fileWriteDelay)

			reloaded := Default()
			if err := v.Unmarshal(reloaded); err != nil {
				return
			}
			if err := Validate(reloaded); err != nil {
				return
			}
			onConfigChange(reloaded)
		})
	}

	return cfg, nil
}
