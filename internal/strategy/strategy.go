// Package strategy defines the Strategy contract consumed by the backtest
// engine and provides a Registry of named strategy factories.
package strategy

import (
	"sort"

	"quantlab/internal/domain"
)

// Strategy turns bar sequences into signal sequences. Implementations hold
// whatever state Fit derives from training data; the walk-forward
// controller builds a fresh instance per window so no state leaks between
// windows.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Fit derives strategy state from a training segment. It is called at
	// most once, before Signals.
	Fit(train []domain.Bar) error

	// Signals produces exactly one Signal per input bar, aligned by
	// timestamp, in order.
	Signals(bars []domain.Bar) ([]domain.Signal, error)
}

// Factory builds a fresh, unfitted Strategy instance.
type Factory func() Strategy

// Registry holds a named collection of strategy factories for lookup and
// enumeration. Registering factories rather than instances keeps every
// backtest window isolated: each run constructs its own Strategy.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry, keyed by the name of the
// strategy it produces.
func (r *Registry) Register(f Factory) {
	r.factories[f().Name()] = f
}

// Get retrieves a factory by name. The second return value indicates
// whether the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
