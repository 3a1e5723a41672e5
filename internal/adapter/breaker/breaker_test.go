package breaker

import (
	"testing"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

func testParams() domain.BreakerParams {
	return domain.BreakerParams{
		FailureThreshold:   5,
		WindowDuration:     60 * time.Second,
		TimeoutDuration:    30 * time.Second,
		HalfOpenProbeLimit: 1,
	}
}

func TestClosedAdmitsAlways(t *testing.T) {
	b := New(testParams())
	allowed, reason := b.Admit()
	if !allowed || reason != domain.AdmitReasonClosed {
		t.Fatalf("expected closed admission, got allowed=%v reason=%s", allowed, reason)
	}
}

func TestOpensAfterThresholdFailures(t *testing.T) {
	b := New(testParams())
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	if b.State() != domain.BreakerClosed {
		t.Fatalf("expected still closed after 4 failures, got %s", b.State())
	}
	b.RecordFailure()
	if b.State() != domain.BreakerOpen {
		t.Fatalf("expected open after 5th failure, got %s", b.State())
	}
}

func TestOpenDeniesUntilTimeoutThenHalfOpens(t *testing.T) {
	params := testParams()
	params.TimeoutDuration = 10 * time.Millisecond
	b := New(params)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	allowed, reason := b.Admit()
	if allowed || reason != domain.AdmitReasonOpen {
		t.Fatalf("expected denial while open, got allowed=%v reason=%s", allowed, reason)
	}

	time.Sleep(15 * time.Millisecond)
	allowed, reason = b.Admit()
	if !allowed || reason != domain.AdmitReasonHalfOpenSlot {
		t.Fatalf("expected half-open probe admission, got allowed=%v reason=%s", allowed, reason)
	}
	if b.State() != domain.BreakerHalfOpen {
		t.Fatalf("expected half-open state, got %s", b.State())
	}
}

func TestHalfOpenProbeSuccessCloses(t *testing.T) {
	params := testParams()
	params.TimeoutDuration = 1 * time.Millisecond
	b := New(params)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(5 * time.Millisecond)
	b.Admit() // transitions to half-open, consumes the probe slot

	b.RecordSuccess()
	if b.State() != domain.BreakerClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	params := testParams()
	params.TimeoutDuration = 1 * time.Millisecond
	b := New(params)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(5 * time.Millisecond)
	b.Admit()

	b.RecordFailure()
	if b.State() != domain.BreakerOpen {
		t.Fatalf("expected re-opened after failed probe, got %s", b.State())
	}
}

func TestHalfOpenLimitsConcurrentProbes(t *testing.T) {
	params := testParams()
	params.TimeoutDuration = 1 * time.Millisecond
	params.HalfOpenProbeLimit = 1
	b := New(params)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(5 * time.Millisecond)

	allowed1, _ := b.Admit()
	allowed2, reason2 := b.Admit()
	if !allowed1 {
		t.Fatal("expected first probe to be admitted")
	}
	if allowed2 || reason2 != domain.AdmitReasonHalfOpenFull {
		t.Fatalf("expected second probe denied as saturated, got allowed=%v reason=%s", allowed2, reason2)
	}
}

func TestResetForcesClosedAndClearsWindow(t *testing.T) {
	b := New(testParams())
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	b.Reset()
	if b.State() != domain.BreakerClosed {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}
	// window cleared: 4 more failures should not re-open
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	if b.State() != domain.BreakerClosed {
		t.Fatalf("expected closed with cleared window, got %s", b.State())
	}
}

func TestWindowExpiryDropsOldFailures(t *testing.T) {
	params := testParams()
	params.WindowDuration = 10 * time.Millisecond
	b := New(params)
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	time.Sleep(20 * time.Millisecond)
	// the 4 prior failures have aged out of the window; one more shouldn't trip it
	b.RecordFailure()
	if b.State() != domain.BreakerClosed {
		t.Fatalf("expected closed once earlier failures fall out of window, got %s", b.State())
	}
}

func TestTransitionEventsAreRecorded(t *testing.T) {
	params := testParams()
	params.TimeoutDuration = 1 * time.Millisecond
	b := New(params)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(5 * time.Millisecond)
	b.Admit()
	b.RecordSuccess()

	events := b.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 transitions (->OPEN, ->HALF_OPEN, ->CLOSED), got %d: %+v", len(events), events)
	}
	if events[0].To != domain.BreakerOpen || events[1].To != domain.BreakerHalfOpen || events[2].To != domain.BreakerClosed {
		t.Fatalf("unexpected transition sequence: %+v", events)
	}
}

func TestRegistryAllOpenAcrossMultipleProxies(t *testing.T) {
	r := NewRegistry(testParams())
	for i := 0; i < 5; i++ {
		r.RecordFailure("a")
		r.RecordFailure("b")
	}
	if !r.AllOpen([]string{"a", "b"}) {
		t.Fatal("expected AllOpen true when every breaker is open")
	}
	r.Reset("a")
	if r.AllOpen([]string{"a", "b"}) {
		t.Fatal("expected AllOpen false once one breaker is reset")
	}
}

func TestRegistryRemoveDropsState(t *testing.T) {
	r := NewRegistry(testParams())
	for i := 0; i < 5; i++ {
		r.RecordFailure("a")
	}
	if r.State("a") != domain.BreakerOpen {
		t.Fatal("expected open before removal")
	}
	r.Remove("a")
	if r.State("a") != domain.BreakerClosed {
		t.Fatal("expected fresh closed breaker after removal")
	}
}
