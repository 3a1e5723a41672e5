// Package store implements the Store port of §6: persist/restore pool
// snapshots. Memory is the trivial in-process implementation used by
// default and in tests; a durable implementation would satisfy the same
// ports.Store interface. app.Application holds a *Memory directly, and the
// rotator takes no Store.
package store

import (
	"context"
	"sync"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Memory is a process-local Store: Save/Load round-trip within the same
// process but do not survive a restart. It exists as the default
// collaborator and as a seam for tests that need a Store without I/O.
type Memory struct {
	mu        sync.RWMutex
	endpoints []domain.Endpoint
}

// New constructs an empty Memory store.
func New() *Memory {
	return &Memory{}
}

// Load returns the most recently Saved endpoint set.
func (m *Memory) Load(_ context.Context) ([]domain.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Endpoint, len(m.endpoints))
	copy(out, m.endpoints)
	return out, nil
}

// Save replaces the stored endpoint set.
func (m *Memory) Save(_ context.Context, endpoints []domain.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endpoints = make([]domain.Endpoint, len(endpoints))
	copy(m.endpoints, endpoints)
	return nil
}
