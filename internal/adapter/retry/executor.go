// Package retry implements the executor of §4.5: it turns one logical
// request into one or more proxy attempts with selection, dispatch,
// classification, backoff, and deadline handling, working from a shrinking
// candidate set and a structured *slog.Logger field-by-field call style.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

// Pool is the narrow slice of internal/adapter/pool.Pool the executor
// needs: a read snapshot and the write paths for stats and the active gauge.
type Pool interface {
	Snapshot() domain.PoolSnapshot
	RecordOutcome(id string, succeeded bool, latency time.Duration, emaAlpha float64, windowDuration time.Duration) error
	MarkStarted(id string) error
	MarkCompleted(id string) error
}

// Executor wires the strategy, breaker registry, rate limiter, dispatcher,
// and metrics aggregator into the retry algorithm of §4.5.
type Executor struct {
	Pool     Pool
	Breakers ports.BreakerRegistry
	Limiter  ports.RateLimiter
	Dispatch ports.Dispatcher
	Metrics  ports.MetricsAggregator
	Logger   *slog.Logger

	EMAAlpha       float64
	StatsWindow    time.Duration
	RateLimitTier  string
	RateLimitIdent func(domain.Request) string
}

// Options overrides the global retry policy for one call (§4.5 step 1).
type Options struct {
	Policy      *domain.RetryPolicy
	Strategy    ports.Strategy
	Context     domain.CompositeSelectionContext
	AdmitPolicy domain.AdmitPolicy // zero value behaves as AdmitPolicyReject
}

// Execute runs §4.5's algorithm to completion, returning the first
// successful Response or a terminal error (RetryExhaustedError,
// NoProxyAvailableError, AllCircuitsOpenError, RateLimitedError, or
// CancelledError). The total_timeout deadline is checked only before each
// backoff sleep: when the next backoff would overrun it, Execute returns
// RetryExhaustedError. An in-flight dispatch or sleep is not cut short by
// the deadline, and DeadlineExceededError is never returned.
func (e *Executor) Execute(ctx context.Context, req domain.Request, global domain.RetryPolicy, opts Options) (domain.Response, error) {
	policy := global
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if !isIdempotent(policy, req.Method) {
		policy.MaxAttempts = 1
	}

	var deadline time.Time
	hasDeadline := policy.TotalTimeout > 0
	if hasDeadline {
		deadline = time.Now().Add(policy.TotalTimeout)
	}

	selCtx := opts.Context
	if selCtx.FailedProxies == nil {
		selCtx.FailedProxies = make(map[string]struct{})
	}

	var lastOutcome error
	var retriedAfter time.Duration
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Response{}, &domain.CancelledError{Partial: lastOutcome}
		}

		if e.Limiter != nil {
			if err := e.admitOrWait(ctx, req, opts.AdmitPolicy, hasDeadline, deadline); err != nil {
				return domain.Response{}, err
			}
		}

		proxy, err := e.selectProxy(opts.Strategy, selCtx)
		if err != nil {
			return domain.Response{}, err
		}

		resp, outcome, classifyErr := e.attempt(ctx, req, proxy, policy, attempt+1, retriedAfter)
		if outcome == domain.OutcomeSuccess {
			return resp, nil
		}
		lastOutcome = classifyErr

		if attempt+1 >= policy.MaxAttempts {
			return domain.Response{}, &domain.RetryExhaustedError{Attempts: attempt + 1, Last: lastOutcome}
		}

		delay := computeBackoff(policy, attempt)
		if hasDeadline && time.Now().Add(delay).After(deadline) {
			return domain.Response{}, &domain.RetryExhaustedError{Attempts: attempt + 1, Last: lastOutcome}
		}
		if outcome == domain.OutcomeNonRetryable {
			return domain.Response{}, &domain.RetryExhaustedError{Attempts: attempt + 1, Last: lastOutcome}
		}

		if len(e.Pool.Snapshot().Proxies) > 1 {
			selCtx.FailedProxies[proxy.ID] = struct{}{}
		}
		if e.Logger != nil {
			e.Logger.Warn("retrying after proxy attempt failure",
				"proxy_id", proxy.ID,
				"attempt", attempt+1,
				"backoff", delay,
				"outcome", outcome)
		}

		if err := sleepOrCancel(ctx, delay); err != nil {
			return domain.Response{}, &domain.CancelledError{Partial: lastOutcome}
		}
		retriedAfter = delay
	}
}

// admitOrWait runs the rate-limiter check, honoring the request's admit
// policy: AdmitPolicyReject (the default) fails the call immediately on
// denial; AdmitPolicyWait blocks and rechecks until the limiter admits or
// the request's own deadline would be exceeded (§5's "rate-limiter wait if
// the caller chose wait policy" suspension point).
func (e *Executor) admitOrWait(ctx context.Context, req domain.Request, policy domain.AdmitPolicy, hasDeadline bool, deadline time.Time) error {
	ident := ""
	if e.RateLimitIdent != nil {
		ident = e.RateLimitIdent(req)
	}

	for {
		result, err := e.Limiter.Check(ctx, ident, req.URL, e.RateLimitTier)
		if err != nil || result.Allowed {
			return nil
		}
		if policy != domain.AdmitPolicyWait {
			return &domain.RateLimitedError{Identifier: ident, RetryAfter: result.RetryAfter}
		}
		if hasDeadline && time.Now().Add(result.RetryAfter).After(deadline) {
			return &domain.RateLimitedError{Identifier: ident, RetryAfter: result.RetryAfter}
		}
		if err := sleepOrCancel(ctx, result.RetryAfter); err != nil {
			return &domain.CancelledError{}
		}
	}
}

func (e *Executor) selectProxy(strategy ports.Strategy, selCtx domain.CompositeSelectionContext) (domain.ProxyView, error) {
	snapshot := e.Pool.Snapshot()
	if len(snapshot.Proxies) == 0 {
		return domain.ProxyView{}, &domain.NoProxyAvailableError{Strategy: strategy.Name(), PoolSize: 0}
	}

	for {
		proxy, ok := strategy.Select(snapshot, selCtx)
		if !ok {
			if e.Breakers != nil {
				ids := make([]string, len(snapshot.Proxies))
				for i, p := range snapshot.Proxies {
					ids[i] = p.ID
				}
				if e.Breakers.AllOpen(ids) {
					return domain.ProxyView{}, &domain.AllCircuitsOpenError{PoolSize: len(snapshot.Proxies)}
				}
			}
			return domain.ProxyView{}, &domain.NoProxyAvailableError{Strategy: strategy.Name(), PoolSize: len(snapshot.Proxies)}
		}

		if e.Breakers != nil {
			if allowed, _ := e.Breakers.Admit(proxy.ID); !allowed {
				selCtx.FailedProxies[proxy.ID] = struct{}{}
				continue
			}
		}
		return proxy, nil
	}
}

func (e *Executor) attempt(ctx context.Context, req domain.Request, proxy domain.ProxyView, policy domain.RetryPolicy, attemptNo int, retriedAfter time.Duration) (domain.Response, domain.OutcomeKind, error) {
	_ = e.Pool.MarkStarted(proxy.ID)
	start := time.Now()
	resp, dispatchErr := e.Dispatch.Dispatch(ctx, req, proxy.Endpoint)
	latency := time.Since(start)
	_ = e.Pool.MarkCompleted(proxy.ID)

	outcome, statusCode, errKind := classify(policy, resp, dispatchErr)

	succeeded := outcome == domain.OutcomeSuccess
	_ = e.Pool.RecordOutcome(proxy.ID, succeeded, latency, e.EMAAlpha, e.StatsWindow)

	if e.Breakers != nil {
		proxyAttributable := succeeded || errKind.ProxyAttributable()
		if succeeded {
			e.Breakers.RecordSuccess(proxy.ID)
		} else if proxyAttributable {
			e.Breakers.RecordFailure(proxy.ID)
		}
	}

	if e.Metrics != nil {
		e.Metrics.Record(domain.RetryAttempt{
			Timestamp:    start,
			ProxyID:      proxy.ID,
			AttemptNo:    attemptNo,
			Outcome:      outcome,
			StatusCode:   statusCode,
			ErrorKind:    errKind,
			LatencyMs:    latency.Milliseconds(),
			RetriedAfter: retriedAfter,
		})
	}

	var outcomeErr error
	if !succeeded {
		if dispatchErr != nil {
			outcomeErr = dispatchErr
		} else {
			outcomeErr = &domain.DispatchError{Kind: errKind, ProxyID: proxy.ID}
		}
	}
	return resp, outcome, outcomeErr
}

// classify implements §4.5 step 5's three-way outcome split.
func classify(policy domain.RetryPolicy, resp domain.Response, dispatchErr error) (domain.OutcomeKind, int, domain.ErrorKind) {
	if dispatchErr == nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return domain.OutcomeSuccess, resp.StatusCode, ""
		}
		if _, retryable := policy.RetryStatusCodes[resp.StatusCode]; retryable {
			return domain.OutcomeRetryable, resp.StatusCode, domain.ErrKindUpstream5xx
		}
		return domain.OutcomeNonRetryable, resp.StatusCode, domain.ErrKindUpstream4xx
	}

	var dispatchErrTyped *domain.DispatchError
	if errors.As(dispatchErr, &dispatchErrTyped) {
		if _, retryable := policy.RetryErrorKinds[dispatchErrTyped.Kind]; retryable {
			return domain.OutcomeRetryable, 0, dispatchErrTyped.Kind
		}
		return domain.OutcomeNonRetryable, 0, dispatchErrTyped.Kind
	}
	return domain.OutcomeRetryable, 0, domain.ErrKindConnect
}

func isIdempotent(policy domain.RetryPolicy, method string) bool {
	_, ok := policy.IdempotentMethods[method]
	return ok
}

func sleepOrCancel(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
