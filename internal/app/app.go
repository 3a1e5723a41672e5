// Package app is the composition root: it wires config, pool, selection
// strategy, circuit breakers, rate limiter, dispatcher, metrics aggregator
// and retry executor into one rotator.Rotator, and owns the background
// goroutines and hot-reload wiring around it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/adapter/breaker"
	"github.com/proxywhirl/proxywhirl/internal/adapter/dispatcher"
	"github.com/proxywhirl/proxywhirl/internal/adapter/metrics"
	"github.com/proxywhirl/proxywhirl/internal/adapter/pool"
	"github.com/proxywhirl/proxywhirl/internal/adapter/ratelimit"
	"github.com/proxywhirl/proxywhirl/internal/adapter/retry"
	"github.com/proxywhirl/proxywhirl/internal/adapter/selector"
	"github.com/proxywhirl/proxywhirl/internal/adapter/store"
	"github.com/proxywhirl/proxywhirl/internal/config"
	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/rotator"
)

// Application owns the full collaborator graph behind one rotator.Rotator
// and its lifecycle: Start loads persisted endpoints and launches the
// metrics aggregator's eviction loop, Stop persists the pool and drains
// that goroutine.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	pool      *pool.Pool
	store     *store.Memory
	breakers  *breaker.Registry
	limiter   *ratelimit.Limiter
	metrics   *metrics.Aggregator
	exec      *retry.Executor
	Rotator   *rotator.Rotator
	startTime time.Time

	stopOnce sync.Once
	runDone  chan struct{}
}

// New builds the full collaborator graph from cfg. It does not register a
// hot-reload callback itself: the caller passes OnConfigChange to
// config.Load, and that method swaps the rotator's strategy and retry
// policy in place (§4.2's hot-swap contract).
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	strategyFactory := selector.NewFactory()
	initialStrategy, err := strategyFactory.Create(cfg.Strategy.Name)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	breakerParams := domain.BreakerParams{
		FailureThreshold:   cfg.Retry.BreakerFailureThreshold,
		WindowDuration:     cfg.Retry.BreakerWindowDuration,
		TimeoutDuration:    cfg.Retry.BreakerTimeoutDuration,
		HalfOpenProbeLimit: cfg.Retry.BreakerHalfOpenProbeLimit,
	}
	breakers := breaker.NewRegistry(breakerParams)

	limiter := ratelimit.New(config.ToRateLimitConfig(cfg.RateLimit), nil)

	proxyPool := pool.New()
	metricsAgg := metrics.New()
	memStore := store.New()

	dispatch := &dispatcher.Dispatcher{
		AttemptTimeout:     cfg.Dispatcher.AttemptTimeout,
		InsecureSkipVerify: cfg.Dispatcher.InsecureSkipVerify,
	}

	exec := &retry.Executor{
		Pool:           proxyPool,
		Breakers:       breakers,
		Limiter:        limiter,
		Dispatch:       dispatch,
		Metrics:        metricsAgg,
		Logger:         logger,
		EMAAlpha:       cfg.Retry.EMAAlpha,
		StatsWindow:    cfg.Retry.StatsWindow,
		RateLimitTier:  cfg.RateLimit.DefaultTier,
		RateLimitIdent: func(req domain.Request) string { return req.ClientID },
	}

	retryPolicy := config.ToRetryPolicy(cfg.Retry)

	rot := rotator.New(proxyPool, breakers, metricsAgg, exec, initialStrategy, retryPolicy)

	a := &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      proxyPool,
		store:     memStore,
		breakers:  breakers,
		limiter:   limiter,
		metrics:   metricsAgg,
		exec:      exec,
		Rotator:   rot,
		startTime: time.Now(),
		runDone:   make(chan struct{}),
	}
	return a, nil
}

// OnConfigChange is passed to config.Load as the hot-reload callback. It
// re-resolves the strategy by name and applies the reloaded retry policy;
// an unknown strategy name or an invalid policy is logged and dropped
// rather than propagated, matching config.Load's own fire-and-forget reload
// semantics.
func (a *Application) OnConfigChange(cfg *config.Config) {
	factory := selector.NewFactory()
	strategy, err := factory.Create(cfg.Strategy.Name)
	if err != nil {
		a.logger.Warn("config reload: unknown strategy, keeping previous", "strategy", cfg.Strategy.Name, "error", err)
	} else {
		a.Rotator.SetStrategy(strategy)
		a.logger.Info("config reload: strategy swapped", "strategy", cfg.Strategy.Name)
	}

	policy := config.ToRetryPolicy(cfg.Retry)
	if err := a.Rotator.SetRetryPolicy(policy); err != nil {
		a.logger.Warn("config reload: invalid retry policy, keeping previous", "error", err)
	} else {
		a.logger.Info("config reload: retry policy applied")
	}

	a.cfg = cfg
}

// Start restores any persisted proxy set and launches the metrics
// aggregator's background eviction loop. It returns once restoration is
// complete; the eviction loop keeps running until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	endpoints, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: loading persisted pool: %w", err)
	}
	for _, ep := range endpoints {
		if _, err := a.pool.Add(ep); err != nil {
			a.logger.Warn("app: skipping persisted endpoint", "endpoint", ep.ID(), "error", err)
		}
	}

	go func() {
		defer close(a.runDone)
		a.metrics.Run(ctx)
	}()

	a.logger.Info("app: started", "restored_proxies", a.pool.Len())
	return nil
}

// Stop persists the current pool snapshot and waits for the metrics
// aggregator's background loop to drain.
func (a *Application) Stop(ctx context.Context) error {
	var stopErr error
	a.stopOnce.Do(func() {
		snapshot := a.pool.Snapshot()
		endpoints := make([]domain.Endpoint, 0, len(snapshot.Proxies))
		for _, p := range snapshot.Proxies {
			endpoints = append(endpoints, p.Endpoint)
		}
		if err := a.store.Save(ctx, endpoints); err != nil {
			stopErr = fmt.Errorf("app: persisting pool: %w", err)
			return
		}

		select {
		case <-a.runDone:
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	})
	return stopErr
}
