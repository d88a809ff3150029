package agent

import (
	"slices"
	"sort"
	"sync"
)

// Registry maps backend names to adapters. Lookups of unknown names fall back
// to the default backend.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback string
}

func NewRegistry(fallback string) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		fallback: fallback,
	}
}

// Register adds or replaces the adapter for backend.
func (r *Registry) Register(backend string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[backend] = a
}

// Resolve returns the adapter for backend, or the fallback adapter when
// backend is unknown. It returns nil only when neither is registered.
func (r *Registry) Resolve(backend string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[backend]; ok {
		return a
	}
	return r.adapters[r.fallback]
}

// Has reports whether backend is registered without falling back.
func (r *Registry) Has(backend string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[backend]
	return ok
}

// Available returns registered backend names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.adapters {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
