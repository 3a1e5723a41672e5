// Package ratelimit implements the sliding-window admission controller of
// §4.4, using the same per-key-lock idiom used elsewhere in this codebase
// for per-entity concurrency (one entry per key, lazily created, own lock
// per entry), generalized to a map+RWMutex since each key's slice needs its
// own mutex for the prune-then-append sequence.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Backend is the optional distributed admission collaborator (§4.4
// "redis_backend"). A real implementation runs the prune-then-append as a
// single server-side script; Limiter falls back to in-memory state if it
// errors.
type Backend interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitResult, error)
}

type bucket struct {
	mu         sync.Mutex
	timestamps *list.List // FIFO of time.Time, oldest at Front
}

// Limiter is the in-memory sliding-window rate limiter, optionally backed
// by a distributed Backend for shared admission state across instances.
type Limiter struct {
	config  domain.RateLimitConfig
	backend Backend

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New constructs a Limiter from config. backend may be nil — Check then
// always uses the in-memory path.
func New(config domain.RateLimitConfig, backend Backend) *Limiter {
	return &Limiter{
		config:  config,
		backend: backend,
		buckets: make(map[string]*bucket),
	}
}

// Check implements the §4.4 admission algorithm: whitelist bypass, then
// tier/endpoint-override resolution to the more restrictive limit, then a
// sliding-window prune-and-append against the backend if configured
// (falling back to in-memory on backend failure) or directly in-memory.
//
// Admission requires BOTH a tier-wide cumulative budget (identifier, tier),
// shared across every endpoint the identifier touches, and the narrower
// per-(identifier, endpoint, tier) budget an endpoint override carves out of
// it — an identifier that exhausts the tier budget against one endpoint
// stays blocked on every other endpoint in that tier until the window rolls.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint, tier string) (domain.RateLimitResult, error) {
	if !l.config.Enabled {
		return domain.RateLimitResult{Allowed: true}, nil
	}
	if _, whitelisted := l.config.Whitelist[identifier]; whitelisted {
		return domain.RateLimitResult{Allowed: true}, nil
	}

	t := l.findTier(tier)
	tierLimit := t.RequestsPerWindow
	window := time.Duration(t.WindowSizeSeconds) * time.Second
	endpointLimit, _ := l.resolveLimit(tier, endpoint)

	tierKey := identifier + "|" + tier
	endpointKey := identifier + "|" + endpoint + "|" + tier

	if l.backend != nil {
		tierResult, tierErr := l.backend.Check(ctx, tierKey, tierLimit, window)
		endpointResult, endpointErr := l.backend.Check(ctx, endpointKey, endpointLimit, window)
		if tierErr == nil && endpointErr == nil {
			return combineResults(tierResult, endpointResult), nil
		}
		result := l.checkBothInMemory(tierKey, tierLimit, endpointKey, endpointLimit, window)
		result.BestEffort = true
		return result, nil
	}

	return l.checkBothInMemory(tierKey, tierLimit, endpointKey, endpointLimit, window), nil
}

// combineResults merges two independently-obtained admission results (e.g.
// from two backend calls) into the conjunctive result Check returns: allowed
// only if both are, remaining the smaller of the two, retry_after the larger
// (the caller must wait for whichever budget is slower to free up).
func combineResults(tierResult, endpointResult domain.RateLimitResult) domain.RateLimitResult {
	if !tierResult.Allowed || !endpointResult.Allowed {
		retryAfter := tierResult.RetryAfter
		if endpointResult.RetryAfter > retryAfter {
			retryAfter = endpointResult.RetryAfter
		}
		resetAt := tierResult.ResetAt
		if endpointResult.ResetAt.After(resetAt) {
			resetAt = endpointResult.ResetAt
		}
		return domain.RateLimitResult{Allowed: false, RetryAfter: retryAfter, ResetAt: resetAt}
	}
	remaining := tierResult.Remaining
	resetAt := tierResult.ResetAt
	if endpointResult.Remaining < remaining {
		remaining = endpointResult.Remaining
	}
	if endpointResult.ResetAt.Before(resetAt) {
		resetAt = endpointResult.ResetAt
	}
	return domain.RateLimitResult{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

// resolveLimit applies §4.4's hierarchical precedence: the endpoint
// override wins only when it is at least as restrictive as the tier limit;
// otherwise the tier limit wins.
func (l *Limiter) resolveLimit(tierName, endpoint string) (int, time.Duration) {
	t := l.findTier(tierName)
	limit := t.RequestsPerWindow
	window := time.Duration(t.WindowSizeSeconds) * time.Second

	if override, ok := t.Endpoints[endpoint]; ok && override < limit {
		limit = override
	}
	return limit, window
}

func (l *Limiter) findTier(name string) domain.RateLimitTier {
	if name == "" {
		name = l.config.DefaultTier
	}
	for _, t := range l.config.Tiers {
		if t.Name == name {
			return t
		}
	}
	for _, t := range l.config.Tiers {
		if t.Name == l.config.DefaultTier {
			return t
		}
	}
	return domain.RateLimitTier{}
}

// checkBothInMemory prunes and peeks both the tier-wide and endpoint buckets
// under their own locks (ordered by key so two concurrent callers never
// deadlock), then admits only if neither bucket is at capacity, appending to
// both in the same pass so the two budgets stay consistent with each other.
func (l *Limiter) checkBothInMemory(tierKey string, tierLimit int, endpointKey string, endpointLimit int, window time.Duration) domain.RateLimitResult {
	tierBucket := l.bucketFor(tierKey)
	endpointBucket := l.bucketFor(endpointKey)

	first, second := tierBucket, endpointBucket
	if endpointKey < tierKey {
		first, second = endpointBucket, tierBucket
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if first != second {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	now := time.Now()
	tierAllowed, tierRemaining, tierResetAt, tierRetryAfter := pruneAndPeek(tierBucket, tierLimit, window, now)
	endpointAllowed, endpointRemaining, endpointResetAt, endpointRetryAfter := pruneAndPeek(endpointBucket, endpointLimit, window, now)

	if !tierAllowed || !endpointAllowed {
		retryAfter := tierRetryAfter
		if endpointRetryAfter > retryAfter {
			retryAfter = endpointRetryAfter
		}
		resetAt := tierResetAt
		if endpointResetAt.After(resetAt) {
			resetAt = endpointResetAt
		}
		return domain.RateLimitResult{Allowed: false, ResetAt: resetAt, RetryAfter: retryAfter}
	}

	tierBucket.timestamps.PushBack(now)
	endpointBucket.timestamps.PushBack(now)

	remaining := tierRemaining - 1
	if endpointRemaining-1 < remaining {
		remaining = endpointRemaining - 1
	}
	resetAt := tierResetAt
	if endpointResetAt.Before(resetAt) {
		resetAt = endpointResetAt
	}
	return domain.RateLimitResult{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

// pruneAndPeek drops expired timestamps from the front of b, then reports
// whether one more entry would fit under limit without appending it — the
// caller commits the append only after checking every bucket it depends on.
func pruneAndPeek(b *bucket, limit int, window time.Duration, now time.Time) (allowed bool, remaining int, resetAt time.Time, retryAfter time.Duration) {
	cutoff := now.Add(-window)
	for b.timestamps.Len() > 0 {
		front := b.timestamps.Front()
		if front.Value.(time.Time).Before(cutoff) {
			b.timestamps.Remove(front)
			continue
		}
		break
	}

	if b.timestamps.Len() >= limit {
		oldest := b.timestamps.Front().Value.(time.Time)
		resetAt = oldest.Add(window)
		return false, 0, resetAt, resetAt.Sub(now)
	}

	remaining = limit - b.timestamps.Len()
	resetAt = now.Add(window)
	if b.timestamps.Len() > 0 {
		resetAt = b.timestamps.Front().Value.(time.Time).Add(window)
	}
	return true, remaining, resetAt, 0
}

func (l *Limiter) bucketFor(key string) *bucket {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()
	if exists {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, exists = l.buckets[key]; exists {
		return b
	}
	b = &bucket{timestamps: list.New()}
	l.buckets[key] = b
	return b
}

// Len reports the number of distinct bucket keys currently tracked — both
// the tier-wide (identifier, tier) buckets and the per-endpoint
// (identifier, endpoint, tier) buckets — for the bounded-memory invariant
// in §5.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Sweep drops keys whose bucket has been empty since before cutoff,
// bounding the key map per §5's "rate limiter's key map ... bounded (oldest
// evicted)".
func (l *Limiter) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		empty := b.timestamps.Len() == 0
		stale := empty
		if !empty {
			back := b.timestamps.Back().Value.(time.Time)
			stale = back.Before(cutoff)
		}
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}
