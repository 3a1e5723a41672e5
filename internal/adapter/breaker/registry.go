package breaker

import (
	"sync"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Registry owns one Breaker per proxy id, created lazily on first touch,
// holding a full Breaker value per key.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	params   domain.BreakerParams
}

// NewRegistry constructs a Registry that creates every new Breaker with
// params.
func NewRegistry(params domain.BreakerParams) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		params:   params,
	}
}

// Admit implements ports.Admitter for a single proxy id (§4.3).
func (r *Registry) Admit(proxyID string) (bool, domain.AdmitReason) {
	return r.breakerFor(proxyID).Admit()
}

// RecordSuccess forwards to the proxy's breaker.
func (r *Registry) RecordSuccess(proxyID string) {
	r.breakerFor(proxyID).RecordSuccess()
}

// RecordFailure forwards to the proxy's breaker. Callers must only invoke
// this for proxy-attributable outcomes (§4.3).
func (r *Registry) RecordFailure(proxyID string) {
	r.breakerFor(proxyID).RecordFailure()
}

// Reset forces the proxy's breaker CLOSED.
func (r *Registry) Reset(proxyID string) {
	r.breakerFor(proxyID).Reset()
}

// State returns the proxy's current breaker state; unknown proxies report
// CLOSED since they have never failed.
func (r *Registry) State(proxyID string) domain.BreakerState {
	r.mu.RLock()
	b, exists := r.breakers[proxyID]
	r.mu.RUnlock()
	if !exists {
		return domain.BreakerClosed
	}
	return b.State()
}

// Events returns the proxy's capped transition-event ring.
func (r *Registry) Events(proxyID string) []domain.BreakerEvent {
	r.mu.RLock()
	b, exists := r.breakers[proxyID]
	r.mu.RUnlock()
	if !exists {
		return nil
	}
	return b.Events()
}

// Remove tears down a proxy's breaker — called when the proxy leaves the
// pool (§4.1: "triggers breaker removal").
func (r *Registry) Remove(proxyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, proxyID)
}

// AllOpen reports whether every listed proxy is currently non-admitting.
// It performs real Admit attempts (not a side-effect-free peek), the same
// way the retry executor would try each candidate in turn — so a HALF_OPEN
// breaker's probe slot is consumed here exactly once, matching §4.3's
// "allowed iff concurrent probes < half_open_probe_limit". It is the
// rotator's trigger for surfacing AllCircuitsOpenError.
func (r *Registry) AllOpen(proxyIDs []string) bool {
	if len(proxyIDs) == 0 {
		return false
	}
	for _, id := range proxyIDs {
		if allowed, _ := r.Admit(id); allowed {
			return false
		}
	}
	return true
}

func (r *Registry) breakerFor(proxyID string) *Breaker {
	r.mu.RLock()
	b, exists := r.breakers[proxyID]
	r.mu.RUnlock()
	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, exists = r.breakers[proxyID]; exists {
		return b
	}
	b = New(r.params)
	r.breakers[proxyID] = b
	return b
}
