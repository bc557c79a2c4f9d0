package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"go.uber.org/zap"
)

// Factory creates an uninitialized connector instance.
type Factory func() core.Connector

// ConfigFactory creates an empty configuration for a connector type, ready
// to be decoded into.
type ConfigFactory func() core.Configuration

// Info describes a connector type.
type Info struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Operations  core.OperationSet `json:"operations"`
}

// Entry is a registered connector type.
type Entry struct {
	Info      Info
	New       Factory
	NewConfig ConfigFactory
}

// Registry manages connector type registration and instantiation
type Registry struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a connector type. The declared manifest is checked once
// against a throwaway instance: every declared operation must be implemented,
// and the type must be poolable.
func (r *Registry) Register(info Info, factory Factory, configFactory ConfigFactory) error {
	if info.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector name is required")
	}
	if factory == nil || configFactory == nil {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s requires a factory and a config factory", info.Name)).
			WithDetail("connector", info.Name)
	}
	if info.Operations.IsEmpty() {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s declares no operations", info.Name)).
			WithDetail("connector", info.Name)
	}

	inst := factory()
	if inst == nil {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s factory returned nil", info.Name)).
			WithDetail("connector", info.Name)
	}
	defer inst.Dispose()

	if _, ok := inst.(core.PoolableConnector); !ok {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s does not implement CheckAlive", info.Name)).
			WithDetail("connector", info.Name)
	}
	implemented := core.Implements(inst)
	for _, op := range info.Operations.List() {
		if !implemented.Has(op) {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s declares %s but does not implement it", info.Name, op)).
				WithDetail("connector", info.Name).
				WithDetail("operation", string(op))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s already registered", info.Name)).
			WithDetail("connector", info.Name)
	}

	r.entries[info.Name] = &Entry{Info: info, New: factory, NewConfig: configFactory}
	r.logger.Debug("connector registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
		zap.Stringer("operations", info.Operations))
	return nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (*Entry, error) {
	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s not found", name)).
			WithDetail("connector", name)
	}
	return entry, nil
}

// Create returns a new uninitialized instance of connector type name.
func (r *Registry) Create(name string) (core.Connector, error) {
	entry, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.New(), nil
}

// List returns the registered connector types sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, e.Info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has checks if a connector type is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[name]
	return exists
}

// Clear removes all registered connectors (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
}

// Global registry functions

// Register registers a connector type in the global registry
func Register(info Info, factory Factory, configFactory ConfigFactory) error {
	return globalRegistry.Register(info, factory, configFactory)
}

// MustRegister is Register for init functions; it panics on error.
func MustRegister(info Info, factory Factory, configFactory ConfigFactory) {
	if err := Register(info, factory, configFactory); err != nil {
		panic(err)
	}
}

// Lookup finds a connector type in the global registry
func Lookup(name string) (*Entry, error) {
	return globalRegistry.Lookup(name)
}

// List returns the connector types of the global registry
func List() []Info {
	return globalRegistry.List()
}

// Has checks if a connector type is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
