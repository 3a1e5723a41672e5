package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

func basicConfig() domain.RateLimitConfig {
	return domain.RateLimitConfig{
		Enabled:     true,
		DefaultTier: "free",
		Tiers: []domain.RateLimitTier{
			{Name: "free", RequestsPerWindow: 3, WindowSizeSeconds: 1},
		},
	}
}

func TestCheckAllowsUpToLimit(t *testing.T) {
	l := New(basicConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := l.Check(ctx, "user-1", "/search", "free")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected attempt %d to be allowed", i)
		}
	}

	result, err := l.Check(ctx, "user-1", "/search", "free")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected 4th attempt within the window to be denied")
	}
	if result.RetryAfter <= 0 {
		t.Fatal("expected a positive retry_after on denial")
	}
}

func TestCheckWhitelistBypasses(t *testing.T) {
	config := basicConfig()
	config.Whitelist = map[string]struct{}{"admin": {}}
	l := New(config, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := l.Check(ctx, "admin", "/search", "free")
		if err != nil || !result.Allowed {
			t.Fatalf("expected whitelisted identifier always allowed, got %+v err=%v", result, err)
		}
	}
}

func TestCheckDisabledAlwaysAllows(t *testing.T) {
	config := basicConfig()
	config.Enabled = false
	l := New(config, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := l.Check(ctx, "user-1", "/search", "free")
		if err != nil || !result.Allowed {
			t.Fatalf("expected disabled limiter to always allow, got %+v err=%v", result, err)
		}
	}
}

func TestEndpointOverrideMoreRestrictiveWins(t *testing.T) {
	config := domain.RateLimitConfig{
		Enabled:     true,
		DefaultTier: "free",
		Tiers: []domain.RateLimitTier{
			{
				Name:              "free",
				RequestsPerWindow: 10,
				WindowSizeSeconds: 1,
				Endpoints:         map[string]int{"/expensive": 1},
			},
		},
	}
	l := New(config, nil)
	ctx := context.Background()

	first, _ := l.Check(ctx, "user-1", "/expensive", "free")
	if !first.Allowed {
		t.Fatal("expected first attempt allowed")
	}
	second, _ := l.Check(ctx, "user-1", "/expensive", "free")
	if second.Allowed {
		t.Fatal("expected endpoint override limit of 1 to deny the second attempt")
	}
}

// TestTierBudgetSharedAcrossEndpoints reproduces the cumulative-budget
// scenario: an identifier that spends part of its tier-wide budget against
// one endpoint has that spend count against every other endpoint in the
// same tier, even though the other endpoint has its own, looser override.
func TestTierBudgetSharedAcrossEndpoints(t *testing.T) {
	config := domain.RateLimitConfig{
		Enabled:     true,
		DefaultTier: "standard",
		Tiers: []domain.RateLimitTier{
			{
				Name:              "standard",
				RequestsPerWindow: 100,
				WindowSizeSeconds: 60,
				Endpoints: map[string]int{
					"/heavy": 10,
				},
			},
		},
	}
	l := New(config, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := l.Check(ctx, "u1", "/heavy", "standard")
		if err != nil || !result.Allowed {
			t.Fatalf("expected /heavy attempt %d allowed, got %+v err=%v", i, result, err)
		}
	}
	denied, _ := l.Check(ctx, "u1", "/heavy", "standard")
	if denied.Allowed {
		t.Fatal("expected 11th /heavy attempt to be denied by its own override")
	}

	for i := 0; i < 90; i++ {
		result, err := l.Check(ctx, "u1", "/light", "standard")
		if err != nil || !result.Allowed {
			t.Fatalf("expected /light attempt %d allowed within the remaining tier budget, got %+v err=%v", i, result, err)
		}
	}

	exhausted, _ := l.Check(ctx, "u1", "/light", "standard")
	if exhausted.Allowed {
		t.Fatal("expected the 101st cumulative request in the tier to be denied even on a fresh endpoint")
	}

	other, _ := l.Check(ctx, "u2", "/light", "standard")
	if !other.Allowed {
		t.Fatal("expected a different identifier's tier budget to be unaffected")
	}
}

func TestEndpointOverrideLessRestrictiveLoses(t *testing.T) {
	config := domain.RateLimitConfig{
		Enabled:     true,
		DefaultTier: "free",
		Tiers: []domain.RateLimitTier{
			{
				Name:              "free",
				RequestsPerWindow: 2,
				WindowSizeSeconds: 1,
				Endpoints:         map[string]int{"/cheap": 100},
			},
		},
	}
	l := New(config, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, _ := l.Check(ctx, "user-1", "/cheap", "free")
		if !result.Allowed {
			t.Fatalf("expected attempt %d allowed under the tier limit of 2", i)
		}
	}
	result, _ := l.Check(ctx, "user-1", "/cheap", "free")
	if result.Allowed {
		t.Fatal("expected tier limit (more restrictive) to win over the endpoint override")
	}
}

func TestWindowSlidesOldTimestampsOut(t *testing.T) {
	config := domain.RateLimitConfig{
		Enabled:     true,
		DefaultTier: "free",
		Tiers: []domain.RateLimitTier{
			{Name: "free", RequestsPerWindow: 1, WindowSizeSeconds: 1},
		},
	}
	config.Tiers[0].WindowSizeSeconds = 0 // effectively instantaneous window via sleep below
	l := New(config, nil)
	ctx := context.Background()

	first, _ := l.Check(ctx, "user-1", "/x", "free")
	if !first.Allowed {
		t.Fatal("expected first attempt allowed")
	}
	time.Sleep(5 * time.Millisecond)
	second, _ := l.Check(ctx, "user-1", "/x", "free")
	if !second.Allowed {
		t.Fatal("expected the window to have slid the first timestamp out")
	}
}

func TestDistinctIdentifiersDoNotShareBuckets(t *testing.T) {
	l := New(basicConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Check(ctx, "user-1", "/search", "free"); err != nil {
			t.Fatal(err)
		}
	}
	result, _ := l.Check(ctx, "user-2", "/search", "free")
	if !result.Allowed {
		t.Fatal("expected a distinct identifier to have its own budget")
	}
}

func TestSweepEvictsStaleBuckets(t *testing.T) {
	l := New(basicConfig(), nil)
	ctx := context.Background()
	_, _ = l.Check(ctx, "user-1", "/search", "free")

	if l.Len() != 2 {
		t.Fatalf("expected 2 tracked buckets (tier-wide and endpoint), got %d", l.Len())
	}
	evicted := l.Sweep(time.Now().Add(time.Hour))
	if evicted != 2 {
		t.Fatalf("expected 2 evictions, got %d", evicted)
	}
	if l.Len() != 0 {
		t.Fatalf("expected 0 buckets after sweep, got %d", l.Len())
	}
}
