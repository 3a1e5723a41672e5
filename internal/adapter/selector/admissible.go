package selector

import "github.com/proxywhirl/proxywhirl/internal/core/domain"

// admissible filters a snapshot down to the proxies a strategy is allowed to
// consider: not excluded by a prior failed attempt in this request, and
// matching any tag filter set on the context. Every strategy in this package
// starts from this filter.
func admissible(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) []domain.ProxyView {
	out := make([]domain.ProxyView, 0, len(snapshot.Proxies))
	for _, proxy := range snapshot.Proxies {
		if ctx.Excludes(proxy.ID) {
			continue
		}
		if !matchesTags(proxy, ctx.TagFilter) {
			continue
		}
		out = append(out, proxy)
	}
	return out
}

func matchesTags(proxy domain.ProxyView, tagFilter map[string]struct{}) bool {
	if len(tagFilter) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(proxy.Endpoint.Tags))
	for _, t := range proxy.Endpoint.Tags {
		have[t] = struct{}{}
	}
	for want := range tagFilter {
		if _, ok := have[want]; !ok {
			return false
		}
	}
	return true
}
