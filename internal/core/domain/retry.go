package domain

import "time"

// BackoffKind selects the delay curve between retry attempts (§3).
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
	BackoffFixed       BackoffKind = "fixed"
)

// RetryPolicy is the full enumerated retry configuration (§3).
// DefaultRetryPolicy returns a policy holding the documented defaults;
// zero-value fields are not filled in. Validate rejects anything outside
// the documented ranges with a ConfigurationError.
type RetryPolicy struct {
	MaxAttempts int // 1-10, default 3
	Backoff     BackoffKind
	BaseDelay   time.Duration // 0.1-60s
	Multiplier  float64       // 1.1-10, exponential only
	MaxDelay    time.Duration // 1-300s cap
	JitterRatio float64       // 0-0.5
	TotalTimeout time.Duration // 0 disables

	RetryStatusCodes map[int]struct{}
	RetryErrorKinds  map[ErrorKind]struct{}
	IdempotentMethods map[string]struct{}
}

// DefaultRetryPolicy returns the §3 defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   1 * time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
		JitterRatio: 0.1,
		RetryStatusCodes: map[int]struct{}{
			502: {}, 503: {}, 504: {},
		},
		RetryErrorKinds: map[ErrorKind]struct{}{
			ErrKindConnect: {}, ErrKindReadTimeout: {}, ErrKindWriteTimeout: {},
			ErrKindDNS: {}, ErrKindProtocol: {},
		},
		IdempotentMethods: map[string]struct{}{
			"GET": {}, "HEAD": {}, "OPTIONS": {},
		},
	}
}

// Validate rejects out-of-range fields eagerly, per §9's "return a
// ConfigurationError rather than deferring to first-use failures".
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 || p.MaxAttempts > 10 {
		return &ConfigurationError{Field: "max_attempts", Value: p.MaxAttempts, Reason: "must be 1-10"}
	}
	if p.BaseDelay < 100*time.Millisecond || p.BaseDelay > 60*time.Second {
		return &ConfigurationError{Field: "base_delay", Value: p.BaseDelay, Reason: "must be 0.1s-60s"}
	}
	if p.Backoff == BackoffExponential && (p.Multiplier < 1.1 || p.Multiplier > 10) {
		return &ConfigurationError{Field: "multiplier", Value: p.Multiplier, Reason: "must be 1.1-10 for exponential backoff"}
	}
	if p.MaxDelay < 1*time.Second || p.MaxDelay > 300*time.Second {
		return &ConfigurationError{Field: "max_delay", Value: p.MaxDelay, Reason: "must be 1s-300s"}
	}
	if p.JitterRatio < 0 || p.JitterRatio > 0.5 {
		return &ConfigurationError{Field: "jitter_ratio", Value: p.JitterRatio, Reason: "must be 0-0.5"}
	}
	switch p.Backoff {
	case BackoffExponential, BackoffLinear, BackoffFixed:
	default:
		return &ConfigurationError{Field: "backoff", Value: p.Backoff, Reason: "must be exponential, linear, or fixed"}
	}
	return nil
}

// OutcomeKind classifies one dispatch attempt's result for the retry
// executor's decision tree (§4.5 step 5).
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeRetryable    OutcomeKind = "retryable"
	OutcomeNonRetryable OutcomeKind = "non_retryable"
)

// RetryAttempt is one emitted attempt event, retained by the metrics
// aggregator up to 24h or a configured cap (§3).
type RetryAttempt struct {
	Timestamp      time.Time
	ProxyID        string
	AttemptNo      int
	Outcome        OutcomeKind
	StatusCode     int
	ErrorKind      ErrorKind
	LatencyMs      int64
	RetriedAfter   time.Duration
}

// CompositeSelectionContext is passed from the executor to the strategy on
// every selection (§3).
type CompositeSelectionContext struct {
	SessionKey     string
	TargetCountry  string
	TargetRegion   string
	FailedProxies  map[string]struct{}
	TagFilter      map[string]struct{}
}

// Excludes reports whether the context has already marked id as failed.
func (c CompositeSelectionContext) Excludes(id string) bool {
	if c.FailedProxies == nil {
		return false
	}
	_, excluded := c.FailedProxies[id]
	return excluded
}
