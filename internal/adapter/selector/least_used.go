package selector

import "github.com/proxywhirl/proxywhirl/internal/core/domain"

// LeastUsed picks the admissible candidate with the fewest active requests,
// breaking ties on total requests completed (§4.2).
type LeastUsed struct{}

// NewLeastUsed constructs a LeastUsed strategy.
func NewLeastUsed() *LeastUsed {
	return &LeastUsed{}
}

// Name returns the strategy's registration name.
func (l *LeastUsed) Name() string {
	return NameLeastUsed
}

// Select returns the least-loaded candidate.
func (l *LeastUsed) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.RequestsActive < best.RequestsActive {
			best = c
			continue
		}
		if c.RequestsActive == best.RequestsActive && c.RequestsCompleted < best.RequestsCompleted {
			best = c
		}
	}
	return best, true
}
