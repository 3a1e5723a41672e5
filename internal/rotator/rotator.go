// Package rotator exposes the public façade of §4.8: request/add/remove/
// update proxy, get/set strategy, get/set retry policy, reset_circuit, and
// stats — all sharing one retry.Executor so the blocking and asynchronous
// forms never diverge. The active strategy and retry policy are held in
// atomic.Values for a lock-free hot swap per §4.2's hot-swap contract
// (atomic; in-flight attempts finish under the old strategy).
package rotator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/adapter/retry"
	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

// Pool is the subset of internal/adapter/pool.Pool the façade drives
// directly, beyond what the executor already needs.
type Pool interface {
	Add(ep domain.Endpoint) (*domain.Proxy, error)
	Remove(id string) (*domain.Proxy, error)
	Update(id string, mutator func(*domain.Proxy)) error
	Snapshot() domain.PoolSnapshot
	Len() int
}

// Executor is the subset of *retry.Executor the façade calls through.
type Executor interface {
	Execute(ctx context.Context, req domain.Request, global domain.RetryPolicy, opts retry.Options) (domain.Response, error)
}

// Breakers is the subset of ports.BreakerRegistry the façade drives
// directly (reset_circuit, state queries, teardown on proxy removal).
type Breakers interface {
	Reset(proxyID string)
	State(proxyID string) domain.BreakerState
	Events(proxyID string) []domain.BreakerEvent
	Remove(proxyID string)
}

// Stats is the §4.8 stats() result.
type Stats struct {
	PoolSize     int
	Strategy     string
	RetryPolicy  domain.RetryPolicy
	Proxies      []domain.ProxyView
	BreakerState map[string]domain.BreakerState
	Metrics      ports.Summary
}

// statsWindow bounds how far back Stats' metrics summary looks.
const statsWindow = time.Hour

// Rotator is the public façade. All mutation methods (SetStrategy,
// SetRetryPolicy) are linearized through swap: in-flight Request calls
// finish under whichever strategy/policy they loaded at call time (§4.2
// hot-swap contract).
type Rotator struct {
	pool     Pool
	breakers Breakers
	metrics  ports.MetricsAggregator

	strategy    atomic.Value // ports.Strategy
	retryPolicy atomic.Value // domain.RetryPolicy

	exec Executor
}

// New constructs a Rotator. exec must already be wired to pool, breakers,
// limiter, dispatcher, and metrics — the façade only decides which
// strategy/policy each call uses.
func New(pool Pool, breakers Breakers, metricsAgg ports.MetricsAggregator, exec Executor, initialStrategy ports.Strategy, initialPolicy domain.RetryPolicy) *Rotator {
	r := &Rotator{pool: pool, breakers: breakers, metrics: metricsAgg, exec: exec}
	r.strategy.Store(initialStrategy)
	r.retryPolicy.Store(initialPolicy)
	return r
}

// Request runs one logical request to completion (blocking form). The
// asynchronous form is RequestAsync, sharing this same executor call.
func (r *Rotator) Request(ctx context.Context, req domain.Request, selCtx domain.CompositeSelectionContext) (domain.Response, error) {
	return r.exec.Execute(ctx, req, r.currentPolicy(), retry.Options{
		Strategy:    r.currentStrategy(),
		Context:     selCtx,
		AdmitPolicy: req.AdmitPolicy,
	})
}

// RequestAsync runs Request on its own goroutine, delivering the result on
// the returned channel exactly once (§4.8 "blocking and an asynchronous
// form sharing the same executor logic").
func (r *Rotator) RequestAsync(ctx context.Context, req domain.Request, selCtx domain.CompositeSelectionContext) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		resp, err := r.Request(ctx, req, selCtx)
		out <- Result{Response: resp, Err: err}
	}()
	return out
}

// Result is one asynchronous Request outcome.
type Result struct {
	Response domain.Response
	Err      error
}

// AddProxy adds a new proxy to the pool.
func (r *Rotator) AddProxy(ep domain.Endpoint) (*domain.Proxy, error) {
	return r.pool.Add(ep)
}

// RemoveProxy removes a proxy and tears down its breaker state.
func (r *Rotator) RemoveProxy(id string) error {
	_, err := r.pool.Remove(id)
	if err != nil {
		return err
	}
	r.breakers.Remove(id)
	return nil
}

// UpdateProxy applies mutator to a live proxy record.
func (r *Rotator) UpdateProxy(id string, mutator func(*domain.Proxy)) error {
	return r.pool.Update(id, mutator)
}

// SetStrategy hot-swaps the active selection strategy. The swap is a single
// atomic store: selections already in flight complete under the old
// strategy; every Request call after this returns uses the new one (§4.2).
func (r *Rotator) SetStrategy(strategy ports.Strategy) {
	r.strategy.Store(strategy)
}

// CurrentStrategy returns the active strategy's name.
func (r *Rotator) CurrentStrategy() string {
	return r.currentStrategy().Name()
}

// SetRetryPolicy hot-swaps the global retry policy after validating it.
func (r *Rotator) SetRetryPolicy(policy domain.RetryPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	r.retryPolicy.Store(policy)
	return nil
}

// ResetCircuit forces a proxy's breaker back to CLOSED.
func (r *Rotator) ResetCircuit(id string) {
	r.breakers.Reset(id)
}

// Stats returns the §4.8 stats() snapshot.
func (r *Rotator) Stats() Stats {
	snapshot := r.pool.Snapshot()
	states := make(map[string]domain.BreakerState, len(snapshot.Proxies))
	for _, p := range snapshot.Proxies {
		states[p.ID] = r.breakers.State(p.ID)
	}
	return Stats{
		PoolSize:     r.pool.Len(),
		Strategy:     r.CurrentStrategy(),
		RetryPolicy:  r.currentPolicy(),
		Proxies:      snapshot.Proxies,
		BreakerState: states,
		Metrics:      r.metrics.Summary(statsWindow),
	}
}

func (r *Rotator) currentStrategy() ports.Strategy {
	return r.strategy.Load().(ports.Strategy)
}

func (r *Rotator) currentPolicy() domain.RetryPolicy {
	return r.retryPolicy.Load().(domain.RetryPolicy)
}
