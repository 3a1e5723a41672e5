package domain

import "time"

// RateLimitTier describes one named tier of the rate-limit policy (§4.4).
type RateLimitTier struct {
	Name                string
	RequestsPerWindow   int
	WindowSizeSeconds   int
	Endpoints           map[string]int // endpoint -> overriding limit
}

// RateLimitConfig is the full enumerated rate-limiter configuration (§4.4).
type RateLimitConfig struct {
	Enabled      bool
	DefaultTier  string
	Tiers        []RateLimitTier
	Whitelist    map[string]struct{}
	RedisBackend *RedisBackendConfig
}

// RedisBackendConfig describes the optional distributed backend (§4.4).
type RedisBackendConfig struct {
	URL       string
	KeyPrefix string
	Timeout   time.Duration
}

// RateLimitResult is returned by the limiter on every check (§3, §6).
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	BestEffort bool // true when a configured distributed backend was unreachable
}

// AdmitPolicy controls what the caller does when the limiter denies
// admission — §5 "rate-limiter wait if the caller chose wait policy
// (default is reject)".
type AdmitPolicy string

const (
	AdmitPolicyReject AdmitPolicy = "reject"
	AdmitPolicyWait   AdmitPolicy = "wait"
)
