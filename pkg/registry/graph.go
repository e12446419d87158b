package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// Graph is the kind registry: nodes keyed by artifact key and directed
// prerequisite edges. Safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	kinds   map[string]*domain.Kind
	order   []string            // registration order
	prereqs map[string][]string // source -> prerequisites, insertion order
}

// KindOption configures a kind on creation. Options are ignored when the
// kind already exists.
type KindOption func(*domain.Kind)

// WithVariant selects the generator variant of a new kind.
func WithVariant(v domain.Variant) KindOption {
	return func(k *domain.Kind) {
		k.Variant = v
	}
}

// WithParams sets the variant parameters of a new kind.
func WithParams(params map[string]any) KindOption {
	return func(k *domain.Kind) {
		k.Params = params
	}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		kinds:   make(map[string]*domain.Kind),
		prereqs: make(map[string][]string),
	}
}

// Require returns the kind registered under key, creating it if needed.
// Concurrent callers with the same key all receive the identical node.
func (g *Graph) Require(name, key string, opts ...KindOption) *domain.Kind {
	g.mu.RLock()
	k, ok := g.kinds[key]
	g.mu.RUnlock()
	if ok {
		return k
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// Re-check: another caller may have created it between the locks.
	if k, ok := g.kinds[key]; ok {
		return k
	}
	k = &domain.Kind{Key: key, Name: name, Variant: domain.VariantSource}
	for _, opt := range opts {
		opt(k)
	}
	g.kinds[key] = k
	g.order = append(g.order, key)
	return k
}

// AddPrerequisite records that source requires prereq, unless already recorded.
// Both kinds must belong to this graph. Cycles are not checked here.
func (g *Graph) AddPrerequisite(source, prereq *domain.Kind) error {
	if source == nil || prereq == nil {
		return &domain.StructuralError{Reason: "nil kind in prerequisite edge"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.kinds[source.Key] != source {
		return &domain.StructuralError{Kind: source.Key, Reason: "edge source is not registered in this graph"}
	}
	if g.kinds[prereq.Key] != prereq {
		return &domain.StructuralError{Kind: source.Key, Reason: fmt.Sprintf("prerequisite %q is not registered in this graph", prereq.Key)}
	}
	if source.Key == prereq.Key {
		return &domain.StructuralError{Kind: source.Key, Reason: "kind cannot require itself"}
	}
	for _, p := range g.prereqs[source.Key] {
		if p == prereq.Key {
			return nil
		}
	}
	g.prereqs[source.Key] = append(g.prereqs[source.Key], prereq.Key)
	return nil
}

// Kind looks up a kind by artifact key.
func (g *Graph) Kind(key string) (*domain.Kind, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	k, ok := g.kinds[key]
	return k, ok
}

// Kinds returns every kind in registration order.
func (g *Graph) Kinds() []*domain.Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*domain.Kind, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.kinds[key])
	}
	return out
}

// Edges returns every prerequisite edge, grouped by source in registration order.
func (g *Graph) Edges() []domain.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.Edge
	for _, key := range g.order {
		for _, p := range g.prereqs[key] {
			out = append(out, domain.Edge{Source: key, Prerequisite: p})
		}
	}
	return out
}

// Has reports whether key is a registered artifact key.
func (g *Graph) Has(key string) bool {
	_, ok := g.Kind(key)
	return ok
}

// prerequisiteKeys returns a copy of the direct prerequisite keys of key.
func (g *Graph) prerequisiteKeys(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.prereqs[key]...)
}

// position returns the registration index of every key.
func (g *Graph) position() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pos := make(map[string]int, len(g.order))
	for i, key := range g.order {
		pos[key] = i
	}
	return pos
}

// Sync persists every kind and edge into the index.
func (g *Graph) Sync(ctx context.Context, index ports.Index) error {
	for _, k := range g.Kinds() {
		if _, err := index.RequireKind(ctx, *k); err != nil {
			return fmt.Errorf("failed to persist kind %q: %w", k.Key, err)
		}
	}
	for _, e := range g.Edges() {
		if err := index.AddPrerequisite(ctx, e); err != nil {
			return fmt.Errorf("failed to persist edge %s -> %s: %w", e.Source, e.Prerequisite, err)
		}
	}
	return nil
}

// LoadGraph rebuilds a Graph from the kinds and edges persisted in the index.
func LoadGraph(ctx context.Context, index ports.Index) (*Graph, error) {
	kinds, err := index.Kinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list kinds: %w", err)
	}
	edges, err := index.Prerequisites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prerequisites: %w", err)
	}

	g := NewGraph()
	for _, k := range kinds {
		g.Require(k.Name, k.Key, WithVariant(k.Variant), WithParams(k.Params))
	}
	for _, e := range edges {
		src, ok := g.Kind(e.Source)
		if !ok {
			return nil, &domain.StructuralError{Kind: e.Source, Reason: "edge references an unknown kind"}
		}
		pre, ok := g.Kind(e.Prerequisite)
		if !ok {
			return nil, &domain.StructuralError{Kind: e.Source, Reason: fmt.Sprintf("edge references unknown kind %q", e.Prerequisite)}
		}
		if err := g.AddPrerequisite(src, pre); err != nil {
			return nil, err
		}
	}
	return g, nil
}
