package selector

import (
	"math/rand"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Random picks uniformly at random from the admissible set (§4.2), sampling
// from rng. Pass a *rand.Rand seeded with a fixed value in tests for
// reproducible selection sequences.
type Random struct {
	rng *rand.Rand
}

// NewRandom constructs a Random strategy.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// Name returns the strategy's registration name.
func (r *Random) Name() string {
	return NameRandom
}

// Select returns a uniformly random candidate.
func (r *Random) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}
	return candidates[r.rng.Intn(len(candidates))], true
}
