package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// computeBackoff implements §4.5 step 7's three delay curves plus mandatory
// jitter, clamped to [0, max_delay].
func computeBackoff(policy domain.RetryPolicy, attempt int) time.Duration {
	var delay time.Duration
	switch policy.Backoff {
	case domain.BackoffLinear:
		delay = policy.BaseDelay * time.Duration(attempt+1)
	case domain.BackoffFixed:
		delay = policy.BaseDelay
	default: // exponential
		delay = time.Duration(float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt)))
	}
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	delay = applyJitter(delay, policy.JitterRatio)
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// applyJitter multiplies delay by a uniform sample in
// [1-jitter_ratio, 1+jitter_ratio]. A jitter_ratio of 0 disables jitter,
// per §4.5's "the caller MAY disable by setting jitter_ratio = 0".
func applyJitter(delay time.Duration, jitterRatio float64) time.Duration {
	if jitterRatio <= 0 {
		return delay
	}
	factor := 1 - jitterRatio + rand.Float64()*2*jitterRatio
	return time.Duration(float64(delay) * factor)
}
