package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// AdapterFactory is a function that creates a new Adapter instance.
type AdapterFactory func() Adapter

// Registry manages registered tracker backends.
// Backends register themselves at init time, and the registry
// provides access to them by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]AdapterFactory
}

// globalRegistry is the default registry used by Register and Get.
var globalRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]AdapterFactory)}
}

// Register adds a backend factory to the global registry.
// The name should be lowercase (e.g., "github", "pivotal", "jira").
func Register(name string, factory AdapterFactory) {
	globalRegistry.Register(name, factory)
}

// Get retrieves a backend factory from the global registry.
// Returns nil if no backend with that name is registered.
func Get(name string) AdapterFactory {
	return globalRegistry.Get(name)
}

// List returns the names of all registered backends.
func List() []string {
	return globalRegistry.List()
}

// NewAdapter creates a new instance of the named backend.
func NewAdapter(name string) (Adapter, error) {
	return globalRegistry.NewAdapter(name)
}

// Register adds a backend factory to this registry.
func (r *Registry) Register(name string, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = factory
}

// Get retrieves a backend factory from this registry.
func (r *Registry) Get(name string) AdapterFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns the names of all registered backends, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAdapter creates a new instance of the named backend.
func (r *Registry) NewAdapter(name string) (Adapter, error) {
	factory := r.Get(name)
	if factory == nil {
		if name == "" {
			return nil, fmt.Errorf("no tracker configured (available: %v)", r.List())
		}
		return nil, fmt.Errorf("unknown tracker %q (available: %v)", name, r.List())
	}
	return factory(), nil
}

// IsRegistered checks if a backend with the given name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}
