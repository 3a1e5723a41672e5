// Package pool implements the authoritative, concurrency-safe proxy set
// described in spec §4.1: one RWMutex guarding the membership map, one lock
// per proxy for stats, and a standard add/remove/update/snapshot CRUD
// contract.
package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Pool is the unordered set of proxies, keyed by id (§3 "Pool").
type Pool struct {
	mu      sync.RWMutex
	proxies map[string]*domain.Proxy
	order   []string // insertion order, for round_robin's stable position
	version atomic.Int64
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		proxies: make(map[string]*domain.Proxy),
	}
}

// Add inserts a new proxy. Returns AlreadyExistsError if the id is already
// present (§4.1).
func (p *Pool) Add(ep domain.Endpoint) (*domain.Proxy, error) {
	proxy := domain.NewProxy(ep)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.proxies[proxy.ID]; exists {
		return nil, &domain.AlreadyExistsError{ID: proxy.ID}
	}
	p.proxies[proxy.ID] = proxy
	p.order = append(p.order, proxy.ID)
	p.version.Add(1)
	return proxy, nil
}

// Remove deletes a proxy and returns its last record. Returns NotFoundError
// if absent. The caller is responsible for also tearing down the proxy's
// breaker (§4.1: "triggers breaker removal").
func (p *Pool) Remove(id string) (*domain.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	proxy, exists := p.proxies[id]
	if !exists {
		return nil, &domain.NotFoundError{ID: id}
	}
	delete(p.proxies, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.version.Add(1)
	return proxy, nil
}

// Update applies mutator atomically under the proxy's own lock (§4.1).
// Fields outside Stats/Health (identity, endpoint) must not be changed by
// mutator — those are immutable after creation.
func (p *Pool) Update(id string, mutator func(*domain.Proxy)) error {
	p.mu.RLock()
	proxy, exists := p.proxies[id]
	p.mu.RUnlock()
	if !exists {
		return &domain.NotFoundError{ID: id}
	}

	proxy.Mu.Lock()
	mutator(proxy)
	proxy.Mu.Unlock()
	return nil
}

// Get returns the live proxy record, for the rotator's direct lookups
// (e.g. ResetCircuit). Selection code must use Snapshot instead.
func (p *Pool) Get(id string) (*domain.Proxy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	proxy, exists := p.proxies[id]
	return proxy, exists
}

// Snapshot returns an O(n) copy of selection-relevant fields plus the pool
// version. Strategies must only read snapshots (§4.1, §4.2, §5).
func (p *Pool) Snapshot() domain.PoolSnapshot {
	p.mu.RLock()
	order := make([]string, len(p.order))
	copy(order, p.order)
	version := p.version.Load()
	p.mu.RUnlock()

	views := make([]domain.ProxyView, 0, len(order))
	for _, id := range order {
		p.mu.RLock()
		proxy, exists := p.proxies[id]
		p.mu.RUnlock()
		if !exists {
			continue
		}
		views = append(views, proxy.View())
	}

	return domain.PoolSnapshot{Version: version, Proxies: views}
}

// Len returns the number of proxies currently in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.proxies)
}

// Version returns the current pool-version counter (bumped on every
// Add/Remove), used by strategies that cache derived state per version.
func (p *Pool) Version() int64 {
	return p.version.Load()
}

// Replace swaps the entire pool contents — the Fetcher collaborator's
// bulk-refresh operation (§6).
func (p *Pool) Replace(endpoints []domain.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.proxies = make(map[string]*domain.Proxy, len(endpoints))
	p.order = p.order[:0]
	for _, ep := range endpoints {
		proxy := domain.NewProxy(ep)
		p.proxies[proxy.ID] = proxy
		p.order = append(p.order, proxy.ID)
	}
	p.version.Add(1)
}

// Merge upserts by id — duplicates update metadata but never reset
// statistics (§6 "Fetcher interface").
func (p *Pool) Merge(endpoints []domain.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range endpoints {
		id := ep.ID()
		if existing, exists := p.proxies[id]; exists {
			existing.Mu.Lock()
			existing.Endpoint.CountryCode = ep.CountryCode
			existing.Endpoint.Region = ep.Region
			existing.Endpoint.Tags = ep.Tags
			existing.Mu.Unlock()
			continue
		}
		proxy := domain.NewProxy(ep)
		p.proxies[id] = proxy
		p.order = append(p.order, id)
	}
	p.version.Add(1)
}

// RecordOutcome is the only path that mutates statistics (§4.1). succeeded
// distinguishes a genuine success from a proxy-attributable failure;
// latency is only folded into the EMA on success, per §3.
func (p *Pool) RecordOutcome(id string, succeeded bool, latency time.Duration, emaAlpha float64, windowDuration time.Duration) error {
	p.mu.RLock()
	proxy, exists := p.proxies[id]
	p.mu.RUnlock()
	if !exists {
		return &domain.NotFoundError{ID: id}
	}

	proxy.Mu.Lock()
	defer proxy.Mu.Unlock()

	now := time.Now()
	s := &proxy.Stats

	s.RequestsCompleted++
	if s.WindowStart.IsZero() || now.Sub(s.WindowStart) >= windowDuration {
		s.WindowStart = now
		s.WindowSucceeded = 0
		s.WindowFailed = 0
	}

	if succeeded {
		s.RequestsSucceeded++
		s.WindowSucceeded++
		s.LastSuccessAt = now
		s.ConsecutiveFailures = 0
		if s.EMAResponseTimeMs == 0 {
			s.EMAResponseTimeMs = float64(latency.Milliseconds())
		} else {
			alpha := emaAlpha
			if alpha <= 0 || alpha > 1 {
				alpha = 0.3
			}
			s.EMAResponseTimeMs = alpha*float64(latency.Milliseconds()) + (1-alpha)*s.EMAResponseTimeMs
		}
	} else {
		s.RequestsFailed++
		s.WindowFailed++
		s.LastFailureAt = now
		s.ConsecutiveFailures++
	}

	proxy.Health = deriveHealth(*s)
	return nil
}

// MarkStarted/MarkCompleted track the RequestsActive gauge across dispatch,
// bumped before dispatch and decremented on completion regardless of
// outcome (§3 invariant: requests_active >= 0).
func (p *Pool) MarkStarted(id string) error {
	p.mu.RLock()
	proxy, exists := p.proxies[id]
	p.mu.RUnlock()
	if !exists {
		return &domain.NotFoundError{ID: id}
	}
	proxy.Mu.Lock()
	proxy.Stats.RequestsStarted++
	proxy.Stats.RequestsActive++
	proxy.Mu.Unlock()
	return nil
}

// MarkCompleted decrements the active gauge; never below zero.
func (p *Pool) MarkCompleted(id string) error {
	p.mu.RLock()
	proxy, exists := p.proxies[id]
	p.mu.RUnlock()
	if !exists {
		return &domain.NotFoundError{ID: id}
	}
	proxy.Mu.Lock()
	if proxy.Stats.RequestsActive > 0 {
		proxy.Stats.RequestsActive--
	}
	proxy.Mu.Unlock()
	return nil
}

func deriveHealth(s domain.Stats) domain.Health {
	if s.RequestsCompleted == 0 {
		return domain.HealthUnknown
	}
	switch {
	case s.ConsecutiveFailures >= 5:
		return domain.HealthUnhealthy
	case s.SuccessRate() < 0.8:
		return domain.HealthDegraded
	default:
		return domain.HealthHealthy
	}
}
