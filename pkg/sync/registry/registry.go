// Package registry manages source adapter registration and instantiation.
// Adapters self-register by name, usually from an init function in their
// own package, and the scheduler instantiates one per entity stream.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// AdapterParams carries everything a factory needs to build one adapter
// instance. Options is the adapter-specific configuration block, passed
// through from config untouched.
type AdapterParams struct {
	OrganizationID string
	EntityType     string
	Options        map[string]string
}

// AdapterFactory builds a source adapter for one entity stream.
type AdapterFactory func(params AdapterParams) (core.SourceAdapter, error)

// Registry maps source names to adapter factories.
type Registry struct {
	factories map[string]AdapterFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]AdapterFactory),
		logger:    logger.Get().With(zap.String("component", "adapter_registry")),
	}
}

// Register adds a factory under the given source name. Registering the same
// name twice is a configuration error.
func (r *Registry) Register(name string, factory AdapterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return syncerrors.New(syncerrors.ErrorTypeConfig, fmt.Sprintf("source adapter %s already registered", name))
	}

	r.factories[name] = factory
	r.logger.Info("source adapter registered", zap.String("name", name))
	return nil
}

// Create instantiates an adapter for one entity stream.
func (r *Registry) Create(name string, params AdapterParams) (core.SourceAdapter, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, fmt.Sprintf("source adapter %s not found", name))
	}

	adapter, err := factory(params)
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeConfig, fmt.Sprintf("failed to create source adapter %s", name))
	}

	return adapter, nil
}

// List returns the registered source names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Has reports whether a source name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Clear removes all registered factories (mainly for testing).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]AdapterFactory)
}

// Global registry functions

// Register adds a factory to the global registry.
func Register(name string, factory AdapterFactory) error {
	return globalRegistry.Register(name, factory)
}

// Create instantiates an adapter from the global registry.
func Create(name string, params AdapterParams) (core.SourceAdapter, error) {
	return globalRegistry.Create(name, params)
}

// List returns source names registered in the global registry.
func List() []string {
	return globalRegistry.List()
}

// Has checks the global registry for a source name.
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
