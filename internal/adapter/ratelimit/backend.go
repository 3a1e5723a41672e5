package ratelimit

import (
	"context"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// NoBackend is a Backend whose Check always errors: a Limiter built with it
// answers every request from its in-memory state and marks each result
// BestEffort. app.New passes a nil backend instead, with which Limiter.Check
// uses the in-memory path without the BestEffort mark. No distributed
// Backend implementation ships in this module; the Backend interface is the
// seam for one.
type NoBackend struct{}

// Check always reports unavailable.
func (NoBackend) Check(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitResult, error) {
	return domain.RateLimitResult{}, errBackendUnconfigured
}

var errBackendUnconfigured = backendError("distributed rate-limit backend not configured")

type backendError string

func (e backendError) Error() string { return string(e) }
