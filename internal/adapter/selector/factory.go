// Package selector implements the pluggable selection strategies of §4.2,
// registered through a name-keyed Factory.
package selector

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/ports"
)

const (
	NameRoundRobin         = "round_robin"
	NameRandom             = "random"
	NameWeighted           = "weighted"
	NameLeastUsed          = "least_used"
	NamePerformanceBased   = "performance_based"
	NameSessionPersistence = "session_persistence"
	NameGeoTargeted        = "geo_targeted"
	NameComposite          = "composite"
)

// Factory builds a named Strategy on demand.
type Factory struct {
	mu       sync.RWMutex
	creators map[string]func() ports.Strategy
}

// NewFactory registers every built-in strategy (§4.2) except composite:
// Create(NameComposite) returns an unknown-strategy error, and a Composite
// is built directly with NewComposite.
func NewFactory() *Factory {
	f := &Factory{creators: make(map[string]func() ports.Strategy)}

	f.Register(NameRoundRobin, func() ports.Strategy { return NewRoundRobin() })
	f.Register(NameRandom, func() ports.Strategy { return NewRandom(newSeededRand()) })
	f.Register(NameWeighted, func() ports.Strategy {
		return NewWeighted(DefaultWeightedGamma, DefaultWeightedEpsilon, newSeededRand())
	})
	f.Register(NameLeastUsed, func() ports.Strategy { return NewLeastUsed() })
	f.Register(NamePerformanceBased, func() ports.Strategy { return NewPerformanceBased(DefaultRegionalBonus) })
	f.Register(NameSessionPersistence, func() ports.Strategy { return NewSessionPersistence(NewRoundRobin(), DefaultSessionTTL) })
	f.Register(NameGeoTargeted, func() ports.Strategy { return NewGeoTargeted(NewRoundRobin()) })

	return f
}

// newSeededRand gives each Random/Weighted instance its own source so
// concurrent selection across strategies never contends on the global
// math/rand lock. Production registration seeds from the wall clock; tests
// construct Random/Weighted directly with a fixed-seed *rand.Rand instead of
// going through the factory.
func newSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Register adds or replaces a named creator.
func (f *Factory) Register(name string, creator func() ports.Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
}

// Create instantiates a fresh strategy by name.
func (f *Factory) Create(name string) (ports.Strategy, error) {
	f.mu.RLock()
	creator, exists := f.creators[name]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown selection strategy: %s", name)
	}
	return creator(), nil
}

// Available lists every registered strategy name.
func (f *Factory) Available() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	return names
}
