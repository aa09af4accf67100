// Package registry is the in-memory provider directory the scheduler, the
// RPC service and the unified views all read from.
package registry

import (
	"sort"
	"sync"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
)

// Registry holds every provider the daemon currently knows about, keyed by
// provider ID. Re-registering an existing ID replaces it in place.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider.Provider
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{providers: make(map[string]provider.Provider)}
}

// Register adds or replaces a provider under its own ID.
func (r *Registry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get returns the provider registered under id, if any.
func (r *Registry) Get(id string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// MustGet returns the provider or a ProviderNotFoundError.
func (r *Registry) MustGet(id string) (provider.Provider, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, &domain.ProviderNotFoundError{ProviderID: id}
	}
	return p, nil
}

// List returns every registered provider ID, sorted for deterministic
// iteration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Remove deletes a provider from the registry. It is a no-op if the ID was
// never registered.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, id)
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]provider.Provider)
}

// All returns every registered provider, sorted by ID.
func (r *Registry) All() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]provider.Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.providers[id])
	}
	return out
}
