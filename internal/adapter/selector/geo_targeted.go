package selector

import (
	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

// GeoTargeted restricts the snapshot to proxies whose country or region
// matches the request's target, then delegates to a fallback strategy
// (§4.2). When the restricted set is empty and GeoFallbackEnabled is set,
// it delegates to the fallback over the full admissible set instead of
// failing the request.
type GeoTargeted struct {
	fallback           ports.Strategy
	GeoFallbackEnabled bool
}

// NewGeoTargeted constructs a GeoTargeted strategy wrapping fallback.
func NewGeoTargeted(fallback ports.Strategy) *GeoTargeted {
	return &GeoTargeted{fallback: fallback, GeoFallbackEnabled: true}
}

// Name returns the strategy's registration name.
func (g *GeoTargeted) Name() string {
	return NameGeoTargeted
}

// Select restricts candidates by country/region then delegates.
func (g *GeoTargeted) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	if ctx.TargetCountry == "" && ctx.TargetRegion == "" {
		return g.fallback.Select(snapshot, ctx)
	}

	restricted := filterByGeo(snapshot, ctx)
	if len(restricted) > 0 {
		return g.fallback.Select(domain.PoolSnapshot{Version: snapshot.Version, Proxies: restricted}, ctx)
	}

	if !g.GeoFallbackEnabled {
		return domain.ProxyView{}, false
	}
	return g.fallback.Select(snapshot, ctx)
}

func filterByGeo(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) []domain.ProxyView {
	out := make([]domain.ProxyView, 0, len(snapshot.Proxies))
	for _, proxy := range snapshot.Proxies {
		if ctx.TargetCountry != "" && proxy.Endpoint.CountryCode == ctx.TargetCountry {
			out = append(out, proxy)
			continue
		}
		if ctx.TargetRegion != "" && proxy.Endpoint.Region == ctx.TargetRegion {
			out = append(out, proxy)
		}
	}
	return out
}
