// Package ports defines the seams between the ProxyWhirl core and its
// collaborators: strategy selection, circuit breaking, rate limiting,
// dispatch, metrics, and persistence.
package ports

import (
	"context"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Strategy maps a pool snapshot and a selection context to one admissible
// proxy (§4.2). Implementations must be safe for concurrent use and must
// never block — an empty admissible set returns (domain.ProxyView{}, false),
// never an error.
type Strategy interface {
	Name() string
	Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool)
}

// Admitter is implemented by strategies/registries that gate selection on
// something other than the snapshot itself (breaker, rate limiter).
type Admitter interface {
	Admit(proxyID string) (bool, domain.AdmitReason)
}

// BreakerRegistry owns one CircuitBreaker per proxy id (§4.3).
type BreakerRegistry interface {
	Admitter
	RecordSuccess(proxyID string)
	RecordFailure(proxyID string)
	Reset(proxyID string)
	State(proxyID string) domain.BreakerState
	Remove(proxyID string)
	Events(proxyID string) []domain.BreakerEvent
	AllOpen(proxyIDs []string) bool
}

// RateLimiter admits requests keyed by an opaque identifier (§4.4).
type RateLimiter interface {
	Check(ctx context.Context, identifier, endpoint, tier string) (domain.RateLimitResult, error)
}

// Dispatcher executes one HTTP request through one proxy endpoint (§4.6).
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.Request, proxy domain.Endpoint) (domain.Response, error)
}

// MetricsAggregator ingests per-attempt events and serves the query surface
// in §4.7.
type MetricsAggregator interface {
	Record(attempt domain.RetryAttempt)
	RecordBreakerEvent(proxyID string, event domain.BreakerEvent)
	Summary(window time.Duration) Summary
	TimeSeries(window time.Duration) []TimeSeriesPoint
	PerProxy(proxyID string) ProxyMetrics
}

// Summary is the aggregator's headline query result.
type Summary struct {
	Total              int64
	Retries            int64
	SuccessByAttemptNo map[int]int64
	BreakerEvents      int64
}

// TimeSeriesPoint is one hourly rollup bucket.
type TimeSeriesPoint struct {
	HourStart      time.Time
	Total          int64
	Retries        int64
	MeanLatencyMs  float64
	P50LatencyMs   float64
	P95LatencyMs   float64
}

// ProxyMetrics is the aggregator's per-proxy query result.
type ProxyMetrics struct {
	ProxyID       string
	Total         int64
	Succeeded     int64
	Failed        int64
	MeanLatencyMs float64
	LastOutcome   domain.OutcomeKind
	LastAt        time.Time
}

// Store persists/restores pool snapshots. The core only calls it at
// explicit load/save points, never in the hot path (§6).
type Store interface {
	Load(ctx context.Context) ([]domain.Endpoint, error)
	Save(ctx context.Context, endpoints []domain.Endpoint) error
}

// Fetcher is the external discovery collaborator; the core only exposes
// pool.Replace/pool.Merge for it to call into (§6).
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.Endpoint, error)
}

// Validator is the external health-probing collaborator; it may seed
// health via record_outcome but never drives selection directly (§6).
type Validator interface {
	Validate(ctx context.Context, endpoint domain.Endpoint) (domain.OutcomeKind, time.Duration, error)
}
