package domain

import "time"

// BreakerState is one of the three circuit breaker states (§3, §6 "wire
// formats": serialized using these exact uppercase names).
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerParams configures one proxy's circuit breaker (§3).
type BreakerParams struct {
	FailureThreshold   int           // k
	WindowDuration     time.Duration // W
	TimeoutDuration    time.Duration // T
	HalfOpenProbeLimit int           // default 1
}

// AdmitReason explains why admit() allowed or denied a request.
type AdmitReason string

const (
	AdmitReasonClosed       AdmitReason = "closed"
	AdmitReasonHalfOpenSlot AdmitReason = "half_open_probe"
	AdmitReasonOpen         AdmitReason = "open"
	AdmitReasonHalfOpenFull AdmitReason = "half_open_saturated"
)

// BreakerEvent records one state transition for introspection (§4.3: "must
// be observable as events ... capped ring of the last N events per breaker").
type BreakerEvent struct {
	At   time.Time
	From BreakerState
	To   BreakerState
}
