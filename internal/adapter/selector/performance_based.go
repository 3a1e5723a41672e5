package selector

import "github.com/proxywhirl/proxywhirl/internal/core/domain"

// DefaultRegionalBonus is the §4.2 scoring bonus applied when a candidate's
// region matches the selection context's target region.
const DefaultRegionalBonus = 0.10

// performanceWindowMs bounds the latency normalization so a single very slow
// proxy cannot flatten every other score to ~1.0 (§4.2: "norm_latency ...
// clamped to [0,1]").
const performanceWindowMs = 5000.0

// PerformanceBased scores each candidate as
// 0.7*success_rate + 0.3*(1-norm_latency), with a flat regional bonus when
// the candidate's region matches the request's target region (§4.2).
type PerformanceBased struct {
	regionalBonus float64
}

// NewPerformanceBased constructs a PerformanceBased strategy.
func NewPerformanceBased(regionalBonus float64) *PerformanceBased {
	return &PerformanceBased{regionalBonus: regionalBonus}
}

// Name returns the strategy's registration name.
func (p *PerformanceBased) Name() string {
	return NamePerformanceBased
}

// Select returns the highest-scoring admissible candidate.
func (p *PerformanceBased) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}

	var best domain.ProxyView
	bestScore := -1.0
	for _, c := range candidates {
		score := p.score(c, ctx)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, true
}

func (p *PerformanceBased) score(c domain.ProxyView, ctx domain.CompositeSelectionContext) float64 {
	normLatency := c.EMAResponseTimeMs / performanceWindowMs
	if normLatency > 1 {
		normLatency = 1
	}
	if normLatency < 0 {
		normLatency = 0
	}

	score := 0.7*c.SuccessRate + 0.3*(1-normLatency)
	if ctx.TargetRegion != "" && c.Endpoint.Region == ctx.TargetRegion {
		score += p.regionalBonus
	}
	return score
}
