// Package phantom defines the seam between the pipeline and the external
// Catphan analyzer integration. The core pipeline has no compile-time
// dependency on any concrete analyzer; integrations register factories by
// phantom model name, database/sql-driver style.
package phantom

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrIntegrationUnavailable is returned when no analyzer integration has
	// registered itself with the registry.
	ErrIntegrationUnavailable = errors.New("no Catphan analyzer integration is available")
	// ErrPhantomNotFound is returned when the integration does not recognize
	// the requested phantom model name.
	ErrPhantomNotFound = errors.New("phantom model is not available")
)

// Analyzer is the narrow surface the pipeline relies on for one study.
type Analyzer interface {
	// Analyze runs the phantom analysis against the study the analyzer was
	// constructed for.
	Analyze() error
	// ResultsSummary returns the human-readable results text.
	ResultsSummary() (string, error)
	// ResultsMetrics returns the structured results as an arbitrarily nested
	// tree of maps, slices, and scalars.
	ResultsMetrics() (any, error)
	// PublishReport writes a rendered report (PDF) to path.
	PublishReport(path string) error
}

// Factory constructs an Analyzer for a study path.
type Factory interface {
	New(path string) (Analyzer, error)
}

// DirectoryFactory is an optional capability: factories that can build an
// analyzer directly from a study directory. It is preferred over Factory.New
// when offered. The probe happens once per factory, not once per study.
type DirectoryFactory interface {
	FromDirectory(path string) (Analyzer, error)
}

// Constructor probes factory's capabilities once and returns the preferred
// construction function: FromDirectory when offered, Factory.New otherwise.
func Constructor(factory Factory) func(path string) (Analyzer, error) {
	if df, ok := factory.(DirectoryFactory); ok {
		return df.FromDirectory
	}
	return factory.New
}

// Registry maps phantom model names to analyzer factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve looks up the factory for name. It fails with
// ErrIntegrationUnavailable when nothing has been registered at all, and with
// ErrPhantomNotFound when the name is unknown.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.factories) == 0 {
		return nil, ErrIntegrationUnavailable
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPhantomNotFound, name)
	}
	return factory, nil
}

// Models returns the registered phantom model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that integrations register into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(name string, factory Factory) {
	defaultRegistry.Register(name, factory)
}
