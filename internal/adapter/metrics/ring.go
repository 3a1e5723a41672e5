package metrics

import (
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// ring is a thread-safe bounded ring buffer of RetryAttempt events, holding
// fixed-size event structs with a capacity cap instead of a byte budget.
type ring struct {
	mu       sync.Mutex
	events   []domain.RetryAttempt
	capacity int
	head     int // index of the oldest event
}

func newRing(capacity int) *ring {
	return &ring{
		events:   make([]domain.RetryAttempt, 0, capacity),
		capacity: capacity,
	}
}

// push appends an event, evicting the oldest once at capacity (§4.7
// "events discarded oldest-first under pressure").
func (r *ring) push(event domain.RetryAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) < r.capacity {
		r.events = append(r.events, event)
		return
	}
	r.events[r.head] = event
	r.head = (r.head + 1) % r.capacity
}

// snapshot returns every retained event not older than cutoff, oldest first.
func (r *ring) snapshot(cutoff time.Time) []domain.RetryAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.RetryAttempt, 0, len(r.events))
	n := len(r.events)
	for i := 0; i < n; i++ {
		idx := (r.head + i) % r.capacity
		if idx >= len(r.events) {
			continue
		}
		e := r.events[idx]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// len reports the number of retained events.
func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
