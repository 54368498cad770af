package metrics

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds a set of named metrics and renders them together in
// Prometheus text format, in registration order.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
	}
}

// Register adds metric under its own name, failing if that name is
// already taken.
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register, panicking on a name collision. Intended for
// the fixed set of metrics registered at process startup, where a
// collision is a programming error, not a runtime condition to handle.
func (r *Registry) MustRegister(metric Metric) {
	if err := r.Register(metric); err != nil {
		panic(err)
	}
}

// Unregister removes the named metric, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.metrics, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the named metric, or nil if it isn't registered.
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather renders every registered metric in Prometheus text format.
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range r.order {
		if metric, ok := r.metrics[name]; ok {
			metric.Write(&sb)
		}
	}
	return sb.String()
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the package-wide registry used by the
// package-level Register/MustRegister/Gather helpers below.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds metric to the default registry.
func Register(metric Metric) error {
	return defaultRegistry.Register(metric)
}

// MustRegister adds metric to the default registry, panicking on a name
// collision.
func MustRegister(metric Metric) {
	defaultRegistry.MustRegister(metric)
}

// Gather renders the default registry's metrics in Prometheus text format.
func Gather() string {
	return defaultRegistry.Gather()
}
