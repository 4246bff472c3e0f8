package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rehostd/rehostd/internal/config"
)

// Constructor builds a Provider from the storage configuration.
type Constructor func(cfg config.StorageConfig) (Provider, error)

// Registry manages storage provider registration and construction.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// DefaultRegistry is the process-wide registry; the built-in providers
// register themselves into it at init time.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a provider constructor under a name. Later registrations
// under the same name replace earlier ones.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// New constructs the provider selected by cfg.Provider. Unknown names fail
// with the list of registered providers.
func (r *Registry) New(cfg config.StorageConfig) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[cfg.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, cfg.Provider, r.Available())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage provider: %w", cfg.Provider, err)
	}

	return provider, nil
}

// Available returns the registered provider names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a provider from the default registry.
func New(cfg config.StorageConfig) (Provider, error) {
	return DefaultRegistry.New(cfg)
}
