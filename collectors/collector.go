// Package collectors provides the collector capability and registration for
// ttop metric gathering. Each collector samples one OS subsystem (CPU, memory,
// disk, network, processes, sensors, battery) and returns a metrics.Metrics
// snapshot keyed by dotted metric names.
package collectors

import (
	"context"

	"gitlab.com/tinyland/lab/ttop/metrics"
)

// Collector is the capability every data collector implements.
// Collectors own whatever previous-sample state they need for delta
// computation; callers only see the resulting Metrics.
type Collector interface {
	// ID returns the collector's stable identifier (e.g., "cpu", "network").
	// IDs must be unique within a Registry.
	ID() string

	// Description returns a human-readable description of what this collector gathers.
	Description() string

	// IsAvailable reports whether the OS sources the collector needs exist.
	// It must be cheap and free of side effects.
	IsAvailable() bool

	// Collect takes one sample. Failures are returned as *CollectionError so
	// the caller can tell a missing subsystem from a bad read.
	Collect(ctx context.Context) (*metrics.Metrics, error)
}

// Registry holds registered collectors in registration order and provides
// lookup by ID.
type Registry struct {
	collectors []Collector
}

// NewRegistry creates a new empty collector registry.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
	}
}

// Register adds a collector to the registry.
// If a collector with the same ID already exists, it is replaced.
func (r *Registry) Register(c Collector) {
	for i, existing := range r.collectors {
		if existing.ID() == c.ID() {
			r.collectors[i] = c
			return
		}
	}
	r.collectors = append(r.collectors, c)
}

// Get returns a collector by ID. The second return value indicates
// whether the collector was found.
func (r *Registry) Get(id string) (Collector, bool) {
	for _, c := range r.collectors {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Remove drops the collector with the given ID, if any.
func (r *Registry) Remove(id string) {
	for i, c := range r.collectors {
		if c.ID() == id {
			r.collectors = append(r.collectors[:i], r.collectors[i+1:]...)
			return
		}
	}
}

// All returns all registered collectors.
func (r *Registry) All() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}
