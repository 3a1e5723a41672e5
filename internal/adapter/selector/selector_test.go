package selector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

func view(id string, successRate float64, emaMs int64) domain.ProxyView {
	return domain.ProxyView{
		ID:                id,
		Endpoint:          domain.Endpoint{Host: id},
		RequestsCompleted: 10,
		SuccessRate:       successRate,
		EMAResponseTimeMs: float64(emaMs),
		Health:            domain.HealthHealthy,
	}
}

func snapshotOf(views ...domain.ProxyView) domain.PoolSnapshot {
	return domain.PoolSnapshot{Version: 1, Proxies: views}
}

func TestRoundRobinCyclesDeterministically(t *testing.T) {
	snap := snapshotOf(view("a", 1, 10), view("b", 1, 10), view("c", 1, 10))
	rr := NewRoundRobin()

	var got []string
	for i := 0; i < 6; i++ {
		c, ok := rr.Select(snap, domain.CompositeSelectionContext{})
		if !ok {
			t.Fatal("expected a candidate")
		}
		got = append(got, c.ID)
	}
	want := []string{"a", "b", "c", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestRoundRobinEmptyPoolReturnsFalse(t *testing.T) {
	rr := NewRoundRobin()
	if _, ok := rr.Select(snapshotOf(), domain.CompositeSelectionContext{}); ok {
		t.Fatal("expected false on empty snapshot")
	}
}

func TestAdmissibleExcludesFailedProxies(t *testing.T) {
	snap := snapshotOf(view("a", 1, 10), view("b", 1, 10))
	ctx := domain.CompositeSelectionContext{FailedProxies: map[string]struct{}{"a": {}}}

	rr := NewRoundRobin()
	c, ok := rr.Select(snap, ctx)
	if !ok || c.ID != "b" {
		t.Fatalf("expected b, got %+v ok=%v", c, ok)
	}
}

func TestLeastUsedPrefersFewestActive(t *testing.T) {
	a := view("a", 1, 10)
	a.RequestsActive = 5
	b := view("b", 1, 10)
	b.RequestsActive = 1

	lu := NewLeastUsed()
	c, ok := lu.Select(snapshotOf(a, b), domain.CompositeSelectionContext{})
	if !ok || c.ID != "b" {
		t.Fatalf("expected b (fewer active), got %+v", c)
	}
}

func TestPerformanceBasedPrefersHigherSuccessAndLowerLatency(t *testing.T) {
	fast := view("fast", 0.95, 100)
	slow := view("slow", 0.95, 4900)

	pb := NewPerformanceBased(DefaultRegionalBonus)
	c, ok := pb.Select(snapshotOf(fast, slow), domain.CompositeSelectionContext{})
	if !ok || c.ID != "fast" {
		t.Fatalf("expected fast, got %+v", c)
	}
}

func TestPerformanceBasedAppliesRegionalBonus(t *testing.T) {
	inRegion := view("in-region", 0.70, 1000)
	inRegion.Endpoint.Region = "eu-west"
	outRegion := view("out-region", 0.74, 1000)

	pb := NewPerformanceBased(DefaultRegionalBonus)
	ctx := domain.CompositeSelectionContext{TargetRegion: "eu-west"}
	c, ok := pb.Select(snapshotOf(inRegion, outRegion), ctx)
	if !ok || c.ID != "in-region" {
		t.Fatalf("expected regional bonus to favor in-region, got %+v", c)
	}
}

func TestSessionPersistenceBindsAndRebindsOnRemoval(t *testing.T) {
	sp := NewSessionPersistence(NewRoundRobin(), 30*time.Minute)
	snap := snapshotOf(view("p1", 1, 10), view("p2", 1, 10))
	ctx := domain.CompositeSelectionContext{SessionKey: "s1"}

	first, ok := sp.Select(snap, ctx)
	if !ok {
		t.Fatal("expected a selection")
	}

	for i := 0; i < 5; i++ {
		again, ok := sp.Select(snap, ctx)
		if !ok || again.ID != first.ID {
			t.Fatalf("expected stable binding to %s, got %+v", first.ID, again)
		}
	}

	// S6: removing the bound proxy from the snapshot forces a rebind.
	remaining := snapshotOf(view("p2", 1, 10))
	if first.ID == "p2" {
		remaining = snapshotOf(view("p1", 1, 10))
	}
	rebound, ok := sp.Select(remaining, ctx)
	if !ok {
		t.Fatal("expected rebind after bound proxy removed")
	}
	if rebound.ID == first.ID {
		t.Fatal("expected rebind to a different proxy once the original left the pool")
	}
}

func TestSessionPersistenceSweepEvictsExpired(t *testing.T) {
	sp := NewSessionPersistence(NewRoundRobin(), time.Millisecond)
	snap := snapshotOf(view("p1", 1, 10))
	ctx := domain.CompositeSelectionContext{SessionKey: "s1"}

	if _, ok := sp.Select(snap, ctx); !ok {
		t.Fatal("expected a selection")
	}
	evicted := sp.Sweep(time.Now().Add(time.Hour))
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if sp.Len() != 0 {
		t.Fatalf("expected 0 remaining bindings, got %d", sp.Len())
	}
}

func TestGeoTargetedRestrictsByCountry(t *testing.T) {
	uk := view("uk", 1, 10)
	uk.Endpoint.CountryCode = "GB"
	us := view("us", 1, 10)
	us.Endpoint.CountryCode = "US"

	geo := NewGeoTargeted(NewRoundRobin())
	ctx := domain.CompositeSelectionContext{TargetCountry: "GB"}
	c, ok := geo.Select(snapshotOf(uk, us), ctx)
	if !ok || c.ID != "uk" {
		t.Fatalf("expected uk, got %+v", c)
	}
}

func TestGeoTargetedFallsBackWhenEmpty(t *testing.T) {
	us := view("us", 1, 10)
	us.Endpoint.CountryCode = "US"

	geo := NewGeoTargeted(NewRoundRobin())
	geo.GeoFallbackEnabled = true
	ctx := domain.CompositeSelectionContext{TargetCountry: "GB"}
	if _, ok := geo.Select(snapshotOf(us), ctx); !ok {
		t.Fatal("expected fallback to full snapshot when restricted set is empty")
	}
}

func TestGeoTargetedFailsWithoutFallback(t *testing.T) {
	us := view("us", 1, 10)
	us.Endpoint.CountryCode = "US"

	geo := NewGeoTargeted(NewRoundRobin())
	geo.GeoFallbackEnabled = false
	ctx := domain.CompositeSelectionContext{TargetCountry: "GB"}
	if _, ok := geo.Select(snapshotOf(us), ctx); ok {
		t.Fatal("expected no selection when restricted set is empty and fallback disabled")
	}
}

func TestCompositeAppliesFiltersLeftToRight(t *testing.T) {
	healthy := view("healthy", 0.9, 10)
	unhealthy := view("unhealthy", 0.9, 10)
	unhealthy.Health = domain.HealthUnhealthy
	lowSuccess := view("low-success", 0.2, 10)

	composite := NewComposite([]Filter{HealthyFilter, MinSuccessRateFilter(0.5)}, NewRoundRobin())
	c, ok := composite.Select(snapshotOf(healthy, unhealthy, lowSuccess), domain.CompositeSelectionContext{})
	if !ok || c.ID != "healthy" {
		t.Fatalf("expected only healthy to survive both filters, got %+v", c)
	}
}

func TestCompositeEmptyAfterFilterReturnsFalse(t *testing.T) {
	lowSuccess := view("low-success", 0.1, 10)
	composite := NewComposite([]Filter{MinSuccessRateFilter(0.5)}, NewRoundRobin())
	if _, ok := composite.Select(snapshotOf(lowSuccess), domain.CompositeSelectionContext{}); ok {
		t.Fatal("expected no candidate to survive the filter")
	}
}

func TestRandomIsReproducibleWithFixedSeed(t *testing.T) {
	snap := snapshotOf(view("a", 1, 10), view("b", 1, 10), view("c", 1, 10))

	r1 := NewRandom(rand.New(rand.NewSource(42)))
	r2 := NewRandom(rand.New(rand.NewSource(42)))

	for i := 0; i < 20; i++ {
		c1, _ := r1.Select(snap, domain.CompositeSelectionContext{})
		c2, _ := r2.Select(snap, domain.CompositeSelectionContext{})
		if c1.ID != c2.ID {
			t.Fatalf("draw %d: expected identical sequences under the same seed, got %s vs %s", i, c1.ID, c2.ID)
		}
	}
}

// TestWeightedNoStarvation exercises the epsilon floor: a proxy with a poor
// success rate must still be reachable over a long enough run, never driven
// to zero selection probability by the gamma exponent.
func TestWeightedNoStarvation(t *testing.T) {
	good := view("good", 0.95, 10)
	poor := view("poor", 0.01, 10)
	snap := snapshotOf(good, poor)

	w := NewWeighted(DefaultWeightedGamma, DefaultWeightedEpsilon, rand.New(rand.NewSource(7)))

	counts := map[string]int{}
	const draws = 5000
	for i := 0; i < draws; i++ {
		c, ok := w.Select(snap, domain.CompositeSelectionContext{})
		if !ok {
			t.Fatal("expected a candidate")
		}
		counts[c.ID]++
	}

	if counts["poor"] == 0 {
		t.Fatal("expected the poor-success-rate proxy to be selected at least once across many draws")
	}
	if counts["good"] <= counts["poor"] {
		t.Fatalf("expected the higher success-rate proxy to be favored overall, got good=%d poor=%d", counts["good"], counts["poor"])
	}
}

func TestFactoryCreateUnknownStrategy(t *testing.T) {
	f := NewFactory()
	if _, err := f.Create("nonexistent"); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestFactoryCreatesEveryBuiltin(t *testing.T) {
	f := NewFactory()
	for _, name := range []string{
		NameRoundRobin, NameRandom, NameWeighted, NameLeastUsed,
		NamePerformanceBased, NameSessionPersistence, NameGeoTargeted,
	} {
		s, err := f.Create(name)
		if err != nil {
			t.Fatalf("create(%s): %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("create(%s) returned strategy named %s", name, s.Name())
		}
	}
}
