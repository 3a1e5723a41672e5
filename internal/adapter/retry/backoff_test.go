package retry

import (
	"testing"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

func TestComputeBackoffExponentialGrowsAndCaps(t *testing.T) {
	policy := domain.RetryPolicy{
		Backoff:     domain.BackoffExponential,
		BaseDelay:   10 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    100 * time.Millisecond,
		JitterRatio: 0,
	}
	if d := computeBackoff(policy, 0); d != 10*time.Millisecond {
		t.Fatalf("attempt 0: expected 10ms, got %v", d)
	}
	if d := computeBackoff(policy, 1); d != 20*time.Millisecond {
		t.Fatalf("attempt 1: expected 20ms, got %v", d)
	}
	if d := computeBackoff(policy, 10); d != 100*time.Millisecond {
		t.Fatalf("expected cap at 100ms, got %v", d)
	}
}

func TestComputeBackoffLinear(t *testing.T) {
	policy := domain.RetryPolicy{
		Backoff:     domain.BackoffLinear,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterRatio: 0,
	}
	if d := computeBackoff(policy, 2); d != 30*time.Millisecond {
		t.Fatalf("expected 30ms, got %v", d)
	}
}

func TestComputeBackoffFixed(t *testing.T) {
	policy := domain.RetryPolicy{
		Backoff:     domain.BackoffFixed,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    time.Second,
		JitterRatio: 0,
	}
	if d := computeBackoff(policy, 7); d != 25*time.Millisecond {
		t.Fatalf("expected fixed 25ms regardless of attempt, got %v", d)
	}
}

func TestComputeBackoffJitterStaysWithinBounds(t *testing.T) {
	policy := domain.RetryPolicy{
		Backoff:     domain.BackoffFixed,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		JitterRatio: 0.2,
	}
	for i := 0; i < 100; i++ {
		d := computeBackoff(policy, 0)
		if d < 80*time.Millisecond || d > 100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [80ms,100ms] (max_delay clamp)", d)
		}
	}
}
