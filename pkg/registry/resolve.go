package registry

import (
	"fmt"
	"sort"

	"github.com/aretw0/telemetry/pkg/domain"
)

// Resolver computes prerequisite sets and build orders over a Graph.
type Resolver struct {
	graph *Graph
}

// NewResolver creates a resolver bound to g.
func NewResolver(g *Graph) *Resolver {
	return &Resolver{graph: g}
}

// Graph returns the graph the resolver reads.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// DirectPrerequisites returns the kinds key directly requires.
func (r *Resolver) DirectPrerequisites(key string) ([]*domain.Kind, error) {
	if !r.graph.Has(key) {
		return nil, &domain.StructuralError{Kind: key, Reason: domain.ErrKindNotFound.Error()}
	}
	keys := r.graph.prerequisiteKeys(key)
	out := make([]*domain.Kind, 0, len(keys))
	for _, p := range keys {
		k, ok := r.graph.Kind(p)
		if !ok {
			return nil, &domain.StructuralError{Kind: key, Reason: fmt.Sprintf("edge references unknown kind %q", p)}
		}
		out = append(out, k)
	}
	return out, nil
}

// TransitiveClosureSorted returns every kind needed to build key, followed by
// key itself, such that each prerequisite precedes the kinds requiring it.
//
// Ties are broken by registration order, so the same graph always yields the
// same ordering. If the closure cannot be fully ordered a *domain.StructuralError
// names the exact set of keys left unresolved.
func (r *Resolver) TransitiveClosureSorted(key string) ([]*domain.Kind, error) {
	if !r.graph.Has(key) {
		return nil, &domain.StructuralError{Kind: key, Reason: domain.ErrKindNotFound.Error()}
	}

	// 1. Breadth-first collection of the closure and each node's direct deps.
	deps := make(map[string]map[string]bool)
	queue := []string{key}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := deps[cur]; seen {
			continue
		}
		if !r.graph.Has(cur) {
			return nil, &domain.StructuralError{Kind: key, Reason: fmt.Sprintf("edge references unknown kind %q", cur)}
		}
		set := make(map[string]bool)
		for _, p := range r.graph.prerequisiteKeys(cur) {
			set[p] = true
			queue = append(queue, p)
		}
		deps[cur] = set
	}

	// Stable input order: registration order restricted to the closure.
	pos := r.graph.position()
	pending := make([]string, 0, len(deps))
	for k := range deps {
		pending = append(pending, k)
	}
	sort.Slice(pending, func(i, j int) bool { return pos[pending[i]] < pos[pending[j]] })

	// downstream[p] lists the nodes whose unmet set contains p.
	downstream := make(map[string][]string)
	for _, k := range pending {
		for p := range deps[k] {
			downstream[p] = append(downstream[p], k)
		}
	}

	// 2. Kahn-style peel, pass by pass, in stable order.
	sorted := make([]*domain.Kind, 0, len(pending))
	for len(pending) > 0 {
		var next []string
		for _, k := range pending {
			if len(deps[k]) > 0 {
				next = append(next, k)
				continue
			}
			kind, _ := r.graph.Kind(k)
			sorted = append(sorted, kind)
			for _, d := range downstream[k] {
				delete(deps[d], k)
			}
		}
		if len(next) == len(pending) {
			sort.Strings(next)
			return nil, &domain.StructuralError{Kind: key, Unresolved: next}
		}
		pending = next
	}
	return sorted, nil
}

// Names is a convenience that maps kinds to their keys.
func Names(kinds []*domain.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Key
	}
	return out
}
