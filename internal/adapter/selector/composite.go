package selector

import (
	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

// Filter is a pure predicate over one candidate and the current selection
// context, evaluated left-to-right by Composite (§4.2: "ordered pipeline of
// filters ... followed by a selector primitive").
type Filter func(domain.ProxyView, domain.CompositeSelectionContext) bool

// Composite evaluates an ordered list of filters against the admissible
// snapshot, then delegates final choice to one selector primitive.
type Composite struct {
	filters  []Filter
	selector ports.Strategy
}

// NewComposite constructs a Composite pipeline. selector must be one of the
// seven primitives, never another Composite (§4.2 disallows nesting).
func NewComposite(filters []Filter, selector ports.Strategy) *Composite {
	return &Composite{filters: filters, selector: selector}
}

// Name returns the strategy's registration name.
func (c *Composite) Name() string {
	return NameComposite
}

// Select applies every filter in order, then the wrapped selector.
func (c *Composite) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	for _, filter := range c.filters {
		candidates = applyFilter(candidates, filter, ctx)
		if len(candidates) == 0 {
			return domain.ProxyView{}, false
		}
	}

	filtered := domain.PoolSnapshot{Version: snapshot.Version, Proxies: candidates}
	// The wrapped selector re-runs admissible() internally; a no-op on an
	// already-filtered, already-exclusion-applied set, since ctx.Excludes
	// only narrows further and matchesTags is idempotent.
	return c.selector.Select(filtered, ctx)
}

func applyFilter(candidates []domain.ProxyView, filter Filter, ctx domain.CompositeSelectionContext) []domain.ProxyView {
	out := make([]domain.ProxyView, 0, len(candidates))
	for _, c := range candidates {
		if filter(c, ctx) {
			out = append(out, c)
		}
	}
	return out
}

// HealthyFilter admits only proxies not currently marked unhealthy — a
// common composite building block.
func HealthyFilter(c domain.ProxyView, _ domain.CompositeSelectionContext) bool {
	return c.Health != domain.HealthUnhealthy
}

// MinSuccessRateFilter returns a Filter admitting only candidates at or
// above the given success rate.
func MinSuccessRateFilter(min float64) Filter {
	return func(c domain.ProxyView, _ domain.CompositeSelectionContext) bool {
		return c.SuccessRate >= min
	}
}
