// Package metrics implements the per-attempt event store and rollup
// aggregator of §4.7: a bounded ring buffer with a 24h retention cap, an
// hourly rollup map kept fresh incrementally, and a query surface bounded
// to ≤100ms per call (see ring.go for the ring buffer); percentile
// recomputation uses golang.org/x/sync/singleflight to collapse concurrent
// TimeSeries callers onto one sort per hour bucket.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

const rollupInterval = 5 * time.Minute

const (
	defaultRetention = 24 * time.Hour
	defaultCapacity  = 10_000 * 24 // ~10k events/h * 24h, per §4.7's memory target
)

type hourBucket struct {
	hourStart     time.Time
	total         int64
	retries       int64
	latenciesMs   []int64
	sumLatencyMs  int64
	breakerEvents int64
}

type proxyState struct {
	total, succeeded, failed int64
	sumLatencyMs             int64
	lastOutcome              domain.OutcomeKind
	lastAt                   time.Time
}

// Aggregator implements ports.MetricsAggregator.
type Aggregator struct {
	retention time.Duration
	ring      *ring
	sf        singleflight.Group

	mu       sync.Mutex
	hours    map[int64]*hourBucket // keyed by hour.Unix()
	byProxy  map[string]*proxyState
	breakerN int64
}

// New constructs an Aggregator with the §4.7 defaults.
func New() *Aggregator {
	return &Aggregator{
		retention: defaultRetention,
		ring:      newRing(defaultCapacity),
		hours:     make(map[int64]*hourBucket),
		byProxy:   make(map[string]*proxyState),
	}
}

// Record ingests one attempt event, updating the ring, the incrementally
// maintained hour bucket, and the per-proxy rollup (§4.7 "last bucket is
// incrementally maintained on each event for freshness").
func (a *Aggregator) Record(attempt domain.RetryAttempt) {
	a.ring.push(attempt)

	a.mu.Lock()
	defer a.mu.Unlock()

	hourKey := attempt.Timestamp.Truncate(time.Hour).Unix()
	bucket, exists := a.hours[hourKey]
	if !exists {
		bucket = &hourBucket{hourStart: attempt.Timestamp.Truncate(time.Hour)}
		a.hours[hourKey] = bucket
	}
	bucket.total++
	bucket.sumLatencyMs += attempt.LatencyMs
	bucket.latenciesMs = append(bucket.latenciesMs, attempt.LatencyMs)
	if attempt.AttemptNo > 1 {
		bucket.retries++
	}

	proxy, exists := a.byProxy[attempt.ProxyID]
	if !exists {
		proxy = &proxyState{}
		a.byProxy[attempt.ProxyID] = proxy
	}
	proxy.total++
	proxy.sumLatencyMs += attempt.LatencyMs
	if attempt.Outcome == domain.OutcomeSuccess {
		proxy.succeeded++
	} else {
		proxy.failed++
	}
	proxy.lastOutcome = attempt.Outcome
	proxy.lastAt = attempt.Timestamp

	a.evictOldHours()
}

// RecordBreakerEvent counts a breaker transition for the summary query.
func (a *Aggregator) RecordBreakerEvent(proxyID string, event domain.BreakerEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.breakerN++

	hourKey := event.At.Truncate(time.Hour).Unix()
	bucket, exists := a.hours[hourKey]
	if !exists {
		bucket = &hourBucket{hourStart: event.At.Truncate(time.Hour)}
		a.hours[hourKey] = bucket
	}
	bucket.breakerEvents++
}

// Summary returns the headline attempt totals over window. BreakerEvents
// is the count of every breaker event recorded since construction, not
// limited to window.
func (a *Aggregator) Summary(window time.Duration) ports.Summary {
	cutoff := time.Now().Add(-window)
	events := a.ring.snapshot(cutoff)

	summary := ports.Summary{SuccessByAttemptNo: make(map[int]int64)}
	for _, e := range events {
		summary.Total++
		if e.AttemptNo > 1 {
			summary.Retries++
		}
		if e.Outcome == domain.OutcomeSuccess {
			summary.SuccessByAttemptNo[e.AttemptNo]++
		}
	}

	a.mu.Lock()
	summary.BreakerEvents = a.breakerN
	a.mu.Unlock()

	return summary
}

// TimeSeries returns hourly points covering window, each with a
// singleflight-collapsed p50/p95 computed from that hour's latencies.
func (a *Aggregator) TimeSeries(window time.Duration) []ports.TimeSeriesPoint {
	cutoff := time.Now().Add(-window).Truncate(time.Hour)

	a.mu.Lock()
	keys := make([]int64, 0, len(a.hours))
	for k, bucket := range a.hours {
		if bucket.hourStart.Before(cutoff) {
			continue
		}
		keys = append(keys, k)
	}
	a.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]ports.TimeSeriesPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, a.hourPoint(k))
	}
	return points
}

// hourPoint computes one hour's point, collapsing concurrent callers for
// the same hour onto a single percentile sort via singleflight.
func (a *Aggregator) hourPoint(hourKey int64) ports.TimeSeriesPoint {
	key := hourKeyString(hourKey)
	v, _, _ := a.sf.Do(key, func() (interface{}, error) {
		a.mu.Lock()
		bucket, exists := a.hours[hourKey]
		if !exists {
			a.mu.Unlock()
			return ports.TimeSeriesPoint{}, nil
		}
		total := bucket.total
		retries := bucket.retries
		sum := bucket.sumLatencyMs
		hourStart := bucket.hourStart
		latencies := make([]int64, len(bucket.latenciesMs))
		copy(latencies, bucket.latenciesMs)
		a.mu.Unlock()

		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		point := ports.TimeSeriesPoint{
			HourStart: hourStart,
			Total:     total,
			Retries:   retries,
		}
		if total > 0 {
			point.MeanLatencyMs = float64(sum) / float64(total)
		}
		point.P50LatencyMs = percentile(latencies, 0.50)
		point.P95LatencyMs = percentile(latencies, 0.95)
		return point, nil
	})
	return v.(ports.TimeSeriesPoint)
}

func percentile(sorted []int64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx])
}

// PerProxy returns the aggregate and most-recent state for one proxy id.
func (a *Aggregator) PerProxy(proxyID string) ports.ProxyMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	proxy, exists := a.byProxy[proxyID]
	if !exists {
		return ports.ProxyMetrics{ProxyID: proxyID}
	}

	metrics := ports.ProxyMetrics{
		ProxyID:     proxyID,
		Total:       proxy.total,
		Succeeded:   proxy.succeeded,
		Failed:      proxy.failed,
		LastOutcome: proxy.lastOutcome,
		LastAt:      proxy.lastAt,
	}
	if proxy.total > 0 {
		metrics.MeanLatencyMs = float64(proxy.sumLatencyMs) / float64(proxy.total)
	}
	return metrics
}

// Run drives the §4.7 background rollup worker: every 5 minutes it evicts
// hour buckets that have aged out of the retention window, so idle periods
// don't leave stale buckets only cleaned up on the next Record call. It
// blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(rollupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.mu.Lock()
			a.evictOldHours()
			a.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// evictOldHours drops hour buckets older than the retention cap, bounding
// the rollup map the same way the ring bounds raw events (§4.7).
// Must be called with a.mu held.
func (a *Aggregator) evictOldHours() {
	cutoff := time.Now().Add(-a.retention).Truncate(time.Hour)
	for key, bucket := range a.hours {
		if bucket.hourStart.Before(cutoff) {
			delete(a.hours, key)
		}
	}
}

func hourKeyString(hourKey int64) string {
	return time.Unix(hourKey, 0).UTC().Format(time.RFC3339)
}
