package selector

import (
	"sync/atomic"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// RoundRobin cycles through the admissible set in pool order, using an
// atomic counter mod len(candidates).
type RoundRobin struct {
	counter uint64
}

// NewRoundRobin constructs a RoundRobin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Name returns the strategy's registration name.
func (r *RoundRobin) Name() string {
	return NameRoundRobin
}

// Select returns the next candidate in the cycle.
func (r *RoundRobin) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}

	current := atomic.AddUint64(&r.counter, 1) - 1
	index := current % uint64(len(candidates))
	return candidates[index], true
}
