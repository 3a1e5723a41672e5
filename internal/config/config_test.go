package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Name = "not_a_strategy"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestValidateRejectsOutOfRangeRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for zero max_attempts")
	}
}

func TestValidateRejectsEndpointOverrideExceedingTierLimit(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Tiers = []RateLimitTier{
		{
			Name:              "default",
			RequestsPerWindow: 100,
			WindowSizeSeconds: 60,
			Endpoints:         map[string]int{"/expensive": 200},
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when endpoint override exceeds tier limit")
	}
}

func TestValidateAcceptsEndpointOverrideBelowTierLimit(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Tiers = []RateLimitTier{
		{
			Name:              "default",
			RequestsPerWindow: 100,
			WindowSizeSeconds: 60,
			Endpoints:         map[string]int{"/expensive": 10},
		},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateRejectsUnknownDefaultTier(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.DefaultTier = "missing"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown default tier")
	}
}

func TestToRetryPolicyRoundTrips(t *testing.T) {
	cfg := Default()
	policy := ToRetryPolicy(cfg.Retry)
	if policy.MaxAttempts != cfg.Retry.MaxAttempts {
		t.Fatalf("expected max attempts %d, got %d", cfg.Retry.MaxAttempts, policy.MaxAttempts)
	}
	if _, ok := policy.RetryStatusCodes[502]; !ok {
		t.Fatal("expected 502 to be a retryable status code")
	}
}

func TestToRateLimitConfigRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Whitelist = []string{"trusted-client"}
	rl := ToRateLimitConfig(cfg.RateLimit)
	if _, ok := rl.Whitelist["trusted-client"]; !ok {
		t.Fatal("expected whitelist entry to round-trip")
	}
}
