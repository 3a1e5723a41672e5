package selector

import (
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

// DefaultSessionTTL is the §4.2 default binding lifetime.
const DefaultSessionTTL = 30 * time.Minute

type binding struct {
	proxyID   string
	expiresAt time.Time
}

// SessionPersistence binds a session key to a proxy id until the binding
// expires or the bound proxy stops being admissible, falling back to an
// inner strategy to pick (and then remember) a replacement (§4.2, S6). The
// bindings map is guarded by one mutex, read under RLock, write under Lock.
type SessionPersistence struct {
	fallback ports.Strategy
	ttl      time.Duration

	mu       sync.RWMutex
	bindings map[string]binding
}

// NewSessionPersistence constructs a SessionPersistence strategy wrapping
// fallback, which is used both for unbound keys and for empty session keys.
func NewSessionPersistence(fallback ports.Strategy, ttl time.Duration) *SessionPersistence {
	return &SessionPersistence{
		fallback: fallback,
		ttl:      ttl,
		bindings: make(map[string]binding),
	}
}

// Name returns the strategy's registration name.
func (s *SessionPersistence) Name() string {
	return NameSessionPersistence
}

// Select returns the proxy bound to ctx.SessionKey if still admissible,
// otherwise selects via the fallback strategy and rebinds.
func (s *SessionPersistence) Select(snapshot domain.PoolSnapshot, ctx domain.CompositeSelectionContext) (domain.ProxyView, bool) {
	if ctx.SessionKey == "" {
		return s.fallback.Select(snapshot, ctx)
	}

	candidates := admissible(snapshot, ctx)
	if len(candidates) == 0 {
		return domain.ProxyView{}, false
	}

	now := time.Now()
	if bound, ok := s.lookup(ctx.SessionKey, now); ok {
		for _, c := range candidates {
			if c.ID == bound {
				return c, true
			}
		}
	}

	chosen, ok := s.fallback.Select(snapshot, ctx)
	if !ok {
		return domain.ProxyView{}, false
	}

	s.bind(ctx.SessionKey, chosen.ID, now)
	return chosen, true
}

func (s *SessionPersistence) lookup(key string, now time.Time) (string, bool) {
	s.mu.RLock()
	b, exists := s.bindings[key]
	s.mu.RUnlock()

	if !exists {
		return "", false
	}
	if now.After(b.expiresAt) {
		s.mu.Lock()
		delete(s.bindings, key)
		s.mu.Unlock()
		return "", false
	}
	return b.proxyID, true
}

func (s *SessionPersistence) bind(key, proxyID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[key] = binding{proxyID: proxyID, expiresAt: now.Add(s.ttl)}
}

// Sweep evicts every binding whose TTL has elapsed, freeing the binding
// (§4.2: "eviction frees binding"). Nothing in this module calls it on a
// schedule; without a call, an expired binding is dropped only when a
// lookup of its key finds it expired.
func (s *SessionPersistence) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, b := range s.bindings {
		if now.After(b.expiresAt) {
			delete(s.bindings, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live bindings, for observability.
func (s *SessionPersistence) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}
