// Package breaker implements the per-proxy circuit breaker of §3/§4.3: a
// three-state machine (CLOSED/OPEN/HALF_OPEN) driven by a rolling window of
// proxy-attributable failures, with a registry that holds one entry per
// key, lazily created, each with its own lock.
package breaker

import (
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

const defaultEventRingSize = 32

// Breaker is one proxy's circuit breaker.
type Breaker struct {
	mu     sync.Mutex
	params domain.BreakerParams

	state          domain.BreakerState
	failures       []time.Time // FIFO, trimmed to window on every touch
	openedAt       time.Time
	halfOpenProbes int

	events []domain.BreakerEvent // capped ring, oldest dropped from the front
}

// New constructs a CLOSED breaker with the given parameters.
func New(params domain.BreakerParams) *Breaker {
	if params.HalfOpenProbeLimit <= 0 {
		params.HalfOpenProbeLimit = 1
	}
	return &Breaker{
		params: params,
		state:  domain.BreakerClosed,
		events: make([]domain.BreakerEvent, 0, defaultEventRingSize),
	}
}

// Admit implements §4.3's admission rule, transitioning OPEN→HALF_OPEN when
// the timeout has elapsed.
func (b *Breaker) Admit() (bool, domain.AdmitReason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case domain.BreakerClosed:
		return true, domain.AdmitReasonClosed
	case domain.BreakerOpen:
		if now.Sub(b.openedAt) < b.params.TimeoutDuration {
			return false, domain.AdmitReasonOpen
		}
		b.transition(domain.BreakerHalfOpen, now)
		b.halfOpenProbes = 1
		return true, domain.AdmitReasonHalfOpenSlot
	case domain.BreakerHalfOpen:
		if b.halfOpenProbes < b.params.HalfOpenProbeLimit {
			b.halfOpenProbes++
			return true, domain.AdmitReasonHalfOpenSlot
		}
		return false, domain.AdmitReasonHalfOpenFull
	default:
		return false, domain.AdmitReasonOpen
	}
}

// RecordSuccess applies §3's HALF_OPEN probe-success and CLOSED no-op rules.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == domain.BreakerHalfOpen {
		b.transition(domain.BreakerClosed, time.Now())
		b.failures = nil
		b.halfOpenProbes = 0
	}
}

// RecordFailure appends a failure timestamp and evaluates the transition
// rules for CLOSED (count-in-window ≥ k → OPEN) and HALF_OPEN (probe
// failure → OPEN with refreshed opened_at). Callers must only invoke this
// for proxy-attributable outcomes (§4.3); non-attributable 4xx must not
// reach the breaker at all.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.failures = append(b.failures, now)
	b.trimWindow(now)

	switch b.state {
	case domain.BreakerClosed:
		if len(b.failures) >= b.params.FailureThreshold {
			b.transition(domain.BreakerOpen, now)
		}
	case domain.BreakerHalfOpen:
		b.transition(domain.BreakerOpen, now)
		b.halfOpenProbes = 0
	}
}

// Reset forces CLOSED and clears the window (§3 "Reset operation").
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(domain.BreakerClosed, time.Now())
	b.failures = nil
	b.halfOpenProbes = 0
}

// State returns the current breaker state.
func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Events returns a copy of the capped transition-event ring, oldest first.
func (b *Breaker) Events() []domain.BreakerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BreakerEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *Breaker) transition(to domain.BreakerState, now time.Time) {
	if to == domain.BreakerOpen {
		b.openedAt = now
	}
	from := b.state
	b.state = to
	if from == to {
		return
	}
	event := domain.BreakerEvent{At: now, From: from, To: to}
	b.events = append(b.events, event)
	if len(b.events) > defaultEventRingSize {
		b.events = b.events[len(b.events)-defaultEventRingSize:]
	}
}

// trimWindow drops failure timestamps older than W, keeping the FIFO slice
// bounded and count-in-window accurate (§9 I-1: "count-in-window equals the
// number of failure timestamps within W of the most recent").
func (b *Breaker) trimWindow(now time.Time) {
	cutoff := now.Add(-b.params.WindowDuration)
	i := 0
	for i < len(b.failures) && b.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = b.failures[i:]
	}
}
