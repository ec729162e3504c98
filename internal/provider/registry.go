package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sawpanic/marketintel/internal/circuit"
)

// Entry pairs a registered Provider with its priority. Higher Priority
// values are preferred; the always-present mock provider is registered at
// the lowest priority so it only serves as a last resort.
type Entry struct {
	Provider Provider
	Priority int
	Enabled  bool
}

// Registry ranks and selects among registered providers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds or replaces a provider at the given priority.
func (r *Registry) Register(p Provider, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.ID()] = &Entry{Provider: p, Priority: priority, Enabled: true}
}

// Enable toggles whether a registered provider participates in selection.
func (r *Registry) Enable(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("provider %q is not registered", id)
	}
	e.Enabled = enabled
	return nil
}

// SetPriority updates a registered provider's ranking priority.
func (r *Registry) SetPriority(id string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("provider %q is not registered", id)
	}
	e.Priority = priority
	return nil
}

// Get returns the entry for a provider id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Ranked returns enabled providers sorted by descending priority (best
// first, higher priority preferred), breaking ties by id for determinism.
func (r *Registry) Ranked() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Provider.ID() < out[j].Provider.ID()
	})
	return out
}

// RankedHealthy returns Ranked filtered to providers whose circuit health is
// not DOWN, preserving priority order. Callers needing a specific symbol
// still fall through the full ranked list if every healthy provider errors.
func (r *Registry) RankedHealthy() []*Entry {
	ranked := r.Ranked()
	out := make([]*Entry, 0, len(ranked))
	for _, e := range ranked {
		if e.Provider.Health() != circuit.Down {
			out = append(out, e)
		}
	}
	return out
}

// All returns every registered entry regardless of enabled state.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider.ID() < out[j].Provider.ID() })
	return out
}
