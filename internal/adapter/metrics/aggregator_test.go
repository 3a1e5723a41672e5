package metrics

import (
	"testing"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

func TestRecordAndSummaryCountsTotals(t *testing.T) {
	a := New()
	now := time.Now()

	a.Record(domain.RetryAttempt{Timestamp: now, ProxyID: "p1", AttemptNo: 1, Outcome: domain.OutcomeSuccess, LatencyMs: 50})
	a.Record(domain.RetryAttempt{Timestamp: now, ProxyID: "p1", AttemptNo: 2, Outcome: domain.OutcomeSuccess, LatencyMs: 70})
	a.Record(domain.RetryAttempt{Timestamp: now, ProxyID: "p2", AttemptNo: 1, Outcome: domain.OutcomeRetryable, LatencyMs: 30})

	summary := a.Summary(time.Hour)
	if summary.Total != 3 {
		t.Fatalf("expected total 3, got %d", summary.Total)
	}
	if summary.Retries != 1 {
		t.Fatalf("expected 1 retry (attempt_no=2), got %d", summary.Retries)
	}
	if summary.SuccessByAttemptNo[1] != 1 || summary.SuccessByAttemptNo[2] != 1 {
		t.Fatalf("unexpected success-by-attempt map: %+v", summary.SuccessByAttemptNo)
	}
}

func TestSummaryExcludesEventsOutsideWindow(t *testing.T) {
	a := New()
	old := time.Now().Add(-2 * time.Hour)
	a.Record(domain.RetryAttempt{Timestamp: old, ProxyID: "p1", AttemptNo: 1, Outcome: domain.OutcomeSuccess})

	summary := a.Summary(time.Hour)
	if summary.Total != 0 {
		t.Fatalf("expected stale event excluded from a 1h window, got total=%d", summary.Total)
	}
}

func TestPerProxyAggregatesLatencyAndOutcome(t *testing.T) {
	a := New()
	now := time.Now()
	a.Record(domain.RetryAttempt{Timestamp: now, ProxyID: "p1", Outcome: domain.OutcomeSuccess, LatencyMs: 100})
	a.Record(domain.RetryAttempt{Timestamp: now.Add(time.Second), ProxyID: "p1", Outcome: domain.OutcomeNonRetryable, LatencyMs: 200})

	metrics := a.PerProxy("p1")
	if metrics.Total != 2 || metrics.Succeeded != 1 || metrics.Failed != 1 {
		t.Fatalf("unexpected per-proxy counts: %+v", metrics)
	}
	if metrics.MeanLatencyMs != 150 {
		t.Fatalf("expected mean latency 150, got %v", metrics.MeanLatencyMs)
	}
	if metrics.LastOutcome != domain.OutcomeNonRetryable {
		t.Fatalf("expected last outcome to be the most recent event, got %s", metrics.LastOutcome)
	}
}

func TestPerProxyUnknownReturnsZeroValue(t *testing.T) {
	a := New()
	metrics := a.PerProxy("missing")
	if metrics.Total != 0 {
		t.Fatalf("expected zero-value metrics for unknown proxy, got %+v", metrics)
	}
}

func TestTimeSeriesBucketsByHourWithPercentiles(t *testing.T) {
	a := New()
	hour := time.Now().Truncate(time.Hour)
	for _, latency := range []int64{10, 20, 30, 40, 50} {
		a.Record(domain.RetryAttempt{Timestamp: hour.Add(time.Minute), ProxyID: "p1", Outcome: domain.OutcomeSuccess, LatencyMs: latency})
	}

	points := a.TimeSeries(2 * time.Hour)
	if len(points) != 1 {
		t.Fatalf("expected 1 hourly point, got %d", len(points))
	}
	p := points[0]
	if p.Total != 5 {
		t.Fatalf("expected total 5, got %d", p.Total)
	}
	if p.MeanLatencyMs != 30 {
		t.Fatalf("expected mean 30, got %v", p.MeanLatencyMs)
	}
	if p.P50LatencyMs != 30 {
		t.Fatalf("expected p50 30, got %v", p.P50LatencyMs)
	}
}

func TestBreakerEventsCountedInSummary(t *testing.T) {
	a := New()
	a.RecordBreakerEvent("p1", domain.BreakerEvent{At: time.Now(), From: domain.BreakerClosed, To: domain.BreakerOpen})
	a.RecordBreakerEvent("p1", domain.BreakerEvent{At: time.Now(), From: domain.BreakerOpen, To: domain.BreakerHalfOpen})

	summary := a.Summary(time.Hour)
	if summary.BreakerEvents != 2 {
		t.Fatalf("expected 2 breaker events, got %d", summary.BreakerEvents)
	}
}

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	r := newRing(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.push(domain.RetryAttempt{Timestamp: base.Add(time.Duration(i) * time.Second), ProxyID: "p1", LatencyMs: int64(i)})
	}
	if r.len() != 3 {
		t.Fatalf("expected ring capped at 3, got %d", r.len())
	}
	events := r.snapshot(base.Add(-time.Hour))
	if len(events) != 3 || events[0].LatencyMs != 2 {
		t.Fatalf("expected oldest 2 events evicted, got %+v", events)
	}
}
