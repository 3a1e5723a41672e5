package config

import (
	"fmt"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

var validStrategies = map[string]struct{}{
	"round_robin":         {},
	"random":              {},
	"weighted":            {},
	"least_used":          {},
	"performance_based":   {},
	"session_persistence": {},
	"geo_targeted":        {},
	"composite":           {},
}

var validBackoffKinds = map[string]struct{}{
	"exponential": {},
	"linear":      {},
	"fixed":       {},
}

// Validate rejects an out-of-range Config eagerly, returning a
// domain.ConfigurationError rather than deferring to first use (§9 Design
// Notes, and the resolved Open Question on endpoint-vs-tier rate limits:
// "reject at load time" — see SPEC_FULL.md §4).
func Validate(cfg *Config) error {
	if _, ok := validStrategies[cfg.Strategy.Name]; !ok {
		return &domain.ConfigurationError{Field: "strategy.name", Value: cfg.Strategy.Name, Reason: "unknown strategy"}
	}
	if cfg.Strategy.WeightedGamma <= 0 {
		return &domain.ConfigurationError{Field: "strategy.weighted_gamma", Value: cfg.Strategy.WeightedGamma, Reason: "must be > 0"}
	}
	if cfg.Strategy.WeightedEpsilon < 0 || cfg.Strategy.WeightedEpsilon >= 1 {
		return &domain.ConfigurationError{Field: "strategy.weighted_epsilon", Value: cfg.Strategy.WeightedEpsilon, Reason: "must be in [0,1)"}
	}

	if err := validateRetryPolicy(cfg.Retry); err != nil {
		return err
	}
	if err := validateRateLimit(cfg.RateLimit); err != nil {
		return err
	}
	if cfg.Dispatcher.AttemptTimeout <= 0 {
		return &domain.ConfigurationError{Field: "dispatcher.attempt_timeout", Value: cfg.Dispatcher.AttemptTimeout, Reason: "must be > 0"}
	}
	if cfg.Metrics.RetentionHours <= 0 {
		return &domain.ConfigurationError{Field: "metrics.retention_hours", Value: cfg.Metrics.RetentionHours, Reason: "must be > 0"}
	}
	if cfg.Session.TTL <= 0 {
		return &domain.ConfigurationError{Field: "session.ttl", Value: cfg.Session.TTL, Reason: "must be > 0"}
	}
	return nil
}

func validateRetryPolicy(r RetryConfig) error {
	if _, ok := validBackoffKinds[r.Backoff]; !ok {
		return &domain.ConfigurationError{Field: "retry.backoff", Value: r.Backoff, Reason: "must be exponential, linear, or fixed"}
	}
	policy := ToRetryPolicy(r)
	if err := policy.Validate(); err != nil {
		return err
	}
	if r.EMAAlpha <= 0 || r.EMAAlpha > 1 {
		return &domain.ConfigurationError{Field: "retry.ema_alpha", Value: r.EMAAlpha, Reason: "must be in (0,1]"}
	}
	if r.BreakerFailureThreshold < 1 {
		return &domain.ConfigurationError{Field: "retry.breaker_failure_threshold", Value: r.BreakerFailureThreshold, Reason: "must be >= 1"}
	}
	if r.BreakerWindowDuration <= 0 {
		return &domain.ConfigurationError{Field: "retry.breaker_window_duration", Value: r.BreakerWindowDuration, Reason: "must be > 0"}
	}
	if r.BreakerTimeoutDuration <= 0 {
		return &domain.ConfigurationError{Field: "retry.breaker_timeout_duration", Value: r.BreakerTimeoutDuration, Reason: "must be > 0"}
	}
	if r.BreakerHalfOpenProbeLimit < 1 {
		return &domain.ConfigurationError{Field: "retry.breaker_half_open_probe_limit", Value: r.BreakerHalfOpenProbeLimit, Reason: "must be >= 1"}
	}
	return nil
}

// validateRateLimit rejects a tier whose per-endpoint override is *less*
// restrictive than the tier's own limit — the resolved Open Question
// decision (spec §9): endpoint overrides may only tighten a tier, never
// loosen it, so an override that raises the effective limit is a
// configuration mistake caught at load time instead of silently granting
// more headroom than the tier allows.
func validateRateLimit(rl RateLimitConfig) error {
	if !rl.Enabled {
		return nil
	}
	names := make(map[string]struct{}, len(rl.Tiers))
	for _, tier := range rl.Tiers {
		if tier.RequestsPerWindow <= 0 {
			return &domain.ConfigurationError{Field: "rate_limit.tiers." + tier.Name + ".requests_per_window", Value: tier.RequestsPerWindow, Reason: "must be > 0"}
		}
		if tier.WindowSizeSeconds <= 0 {
			return &domain.ConfigurationError{Field: "rate_limit.tiers." + tier.Name + ".window_size_seconds", Value: tier.WindowSizeSeconds, Reason: "must be > 0"}
		}
		names[tier.Name] = struct{}{}
		for endpoint, override := range tier.Endpoints {
			if override > tier.RequestsPerWindow {
				return &domain.ConfigurationError{
					Field:  fmt.Sprintf("rate_limit.tiers.%s.endpoints.%s", tier.Name, endpoint),
					Value:  override,
					Reason: "endpoint override must not exceed the tier's requests_per_window",
				}
			}
		}
	}
	if _, ok := names[rl.DefaultTier]; !ok {
		return &domain.ConfigurationError{Field: "rate_limit.default_tier", Value: rl.DefaultTier, Reason: "must name a configured tier"}
	}
	return nil
}

// ToRetryPolicy converts the configuration shape into the domain value type
// the retry executor consumes.
func ToRetryPolicy(r RetryConfig) domain.RetryPolicy {
	statusCodes := make(map[int]struct{}, len(r.RetryStatusCodes))
	for _, code := range r.RetryStatusCodes {
		statusCodes[code] = struct{}{}
	}
	methods := make(map[string]struct{}, len(r.IdempotentMethods))
	for _, m := range r.IdempotentMethods {
		methods[m] = struct{}{}
	}
	return domain.RetryPolicy{
		MaxAttempts:       r.MaxAttempts,
		Backoff:           domain.BackoffKind(r.Backoff),
		BaseDelay:         r.BaseDelay,
		Multiplier:        r.Multiplier,
		MaxDelay:          r.MaxDelay,
		JitterRatio:       r.JitterRatio,
		TotalTimeout:      r.TotalTimeout,
		RetryStatusCodes:  statusCodes,
		RetryErrorKinds:   domain.DefaultRetryPolicy().RetryErrorKinds,
		IdempotentMethods: methods,
	}
}

// ToRateLimitConfig converts the configuration shape into the domain value
// type the limiter consumes.
func ToRateLimitConfig(rl RateLimitConfig) domain.RateLimitConfig {
	tiers := make([]domain.RateLimitTier, len(rl.Tiers))
	for i, t := range rl.Tiers {
		tiers[i] = domain.RateLimitTier{
			Name:              t.Name,
			RequestsPerWindow: t.RequestsPerWindow,
			WindowSizeSeconds: t.WindowSizeSeconds,
			Endpoints:         t.Endpoints,
		}
	}
	whitelist := make(map[string]struct{}, len(rl.Whitelist))
	for _, id := range rl.Whitelist {
		whitelist[id] = struct{}{}
	}

	cfg := domain.RateLimitConfig{
		Enabled:     rl.Enabled,
		DefaultTier: rl.DefaultTier,
		Tiers:       tiers,
		Whitelist:   whitelist,
	}
	if rl.RedisURL != "" {
		cfg.RedisBackend = &domain.RedisBackendConfig{
			URL:       rl.RedisURL,
			KeyPrefix: rl.RedisPrefix,
			Timeout:   rl.RedisTimeout,
		}
	}
	return cfg
}
