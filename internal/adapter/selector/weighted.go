package selector

import (
	"math"
	"math/rand"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// DefaultWeightedGamma and DefaultWeightedEpsilon are the §4.2 defaults:
// weight = success_rate^gamma, floored at epsilon so a proxy with a cold
// start or a bad run is never fully starved of traffic.
const (
	DefaultWeightedGamma   = 1.0
	DefaultWeightedEpsilon = 0.05
)

// Weighted samples proportionally to success_rate^gamma, with an epsilon
// floor (§4.2 "weighted"), using a cumulative-weight sampling loop.
type Weighted struct {
	gamma   float64
	epsilon float64
	rng     *rand.Rand
}

// NewWeighted constructs a Weighted strategy with the given exponent and
// starvation floor, sampling from rng. Pass a *rand.Rand seeded with a fixed
// value in tests for reproducible selection sequences.
func NewWeighted(gamma, epsilon float64, rng *rand.Rand) *Weighted {
	return &Weighted{gamma: gamma, epsilon: epsilon, rng: rng}
}

// Name returns the strategy's registration name.
func (w *Weighted) Name() string {
	return NameWeighted
}

// Select performs weighted-random sampling over the admissible set.
func (w *Weighted) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		weight := math.Pow(c.SuccessRate, w.gamma)
		if weight < w.epsilon {
			weight = w.epsilon
		}
		weights[i] = weight
		total += weight
	}

	if total <= 0 {
		return candidates[w.rng.Intn(len(candidates))], true
	}

	r := w.rng.Float64() * total
	sum := 0.0
	for i, weight := range weights {
		sum += weight
		if r <= sum {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}
