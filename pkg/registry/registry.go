package registry

import (
	"fmt"
	"sync"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// GeneratorFactory builds the generator of one kind from the kind's params.
type GeneratorFactory func(kind domain.Kind) (ports.Generator, error)

// Generators maps kind variants to generator factories.
type Generators struct {
	mu        sync.RWMutex
	factories map[domain.Variant]GeneratorFactory
}

// NewGenerators creates a new empty generator registry.
func NewGenerators() *Generators {
	return &Generators{
		factories: make(map[domain.Variant]GeneratorFactory),
	}
}

// Register adds a variant to the registry.
// If the variant is already registered, it is overwritten.
func (r *Generators) Register(variant domain.Variant, factory GeneratorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[variant] = factory
}

// RegisterGenerator binds a variant to a fixed generator, ignoring params.
func (r *Generators) RegisterGenerator(variant domain.Variant, gen ports.Generator) {
	r.Register(variant, func(domain.Kind) (ports.Generator, error) { return gen, nil })
}

// Variants lists the registered variants.
func (r *Generators) Variants() []domain.Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Variant, 0, len(r.factories))
	for v := range r.factories {
		out = append(out, v)
	}
	return out
}

// For builds the generator for kind.
// Source kinds return domain.ErrNotGeneratable.
func (r *Generators) For(kind domain.Kind) (ports.Generator, error) {
	if !kind.Generatable() {
		return nil, fmt.Errorf("%q: %w", kind.Key, domain.ErrNotGeneratable)
	}
	r.mu.RLock()
	factory, ok := r.factories[kind.Variant]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("generator not found for variant %q of kind %q", kind.Variant, kind.Key)
	}
	gen, err := factory(kind)
	if err != nil {
		return nil, fmt.Errorf("invalid params for kind %q: %w", kind.Key, err)
	}
	return gen, nil
}

// Validate checks that every generatable kind of g has a working generator.
func (r *Generators) Validate(g *Graph) error {
	for _, k := range g.Kinds() {
		if !k.Generatable() {
			continue
		}
		if _, err := r.For(*k); err != nil {
			return &domain.StructuralError{Kind: k.Key, Reason: err.Error()}
		}
	}
	return nil
}
