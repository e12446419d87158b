// Package chain turns a target kind into the ordered steps still needed for
// one dataset.
package chain

import (
	"context"
	"fmt"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/registry"
)

// Step is one generation of Kind for Dataset.
type Step struct {
	Dataset domain.Dataset
	Kind    string
	Force   bool
}

func (s Step) String() string {
	if s.Force {
		return fmt.Sprintf("%s:%s (force)", s.Dataset.ID, s.Kind)
	}
	return fmt.Sprintf("%s:%s", s.Dataset.ID, s.Kind)
}

// Options tune chain building.
type Options struct {
	// Force regenerates the target even when it is materialized.
	// Materialized upstream kinds are never regenerated.
	Force bool
	// Recursive includes missing prerequisites. When false the chain holds
	// at most the target step, which fails at run time if its direct
	// prerequisites are missing.
	Recursive bool
}

// Builder builds chains over a resolver and the artifact index.
type Builder struct {
	resolver *registry.Resolver
	adapter  *artifacts.Adapter
}

// NewBuilder creates a Builder.
func NewBuilder(adapter *artifacts.Adapter) *Builder {
	return &Builder{
		resolver: registry.NewResolver(adapter.Graph()),
		adapter:  adapter,
	}
}

// Build returns the recursive chain for target.
func (b *Builder) Build(ctx context.Context, ds domain.Dataset, target string, force bool) ([]Step, error) {
	return b.BuildWith(ctx, ds, target, Options{Force: force, Recursive: true})
}

// BuildWith returns the steps needed to materialize target for ds, in
// resolver order. Invalid datasets are refused with a *domain.ConsistencyError.
func (b *Builder) BuildWith(ctx context.Context, ds domain.Dataset, target string, opts Options) ([]Step, error) {
	order, err := b.resolver.TransitiveClosureSorted(target)
	if err != nil {
		return nil, err
	}
	if !ds.Valid {
		return nil, &domain.ConsistencyError{Dataset: ds.ID, Cause: fmt.Errorf("dataset is marked invalid: %s", ds.Error)}
	}
	if !opts.Recursive {
		order = order[len(order)-1:]
	}

	have, err := b.adapter.Artifacts(ctx, ds.ID)
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, k := range order {
		isTarget := k.Key == target
		if _, ok := have[k.Key]; ok && !(isTarget && opts.Force) {
			continue
		}
		steps = append(steps, Step{Dataset: ds, Kind: k.Key, Force: isTarget && opts.Force})
	}
	return steps, nil
}

// Kinds returns the kind keys of steps.
func Kinds(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

// Resolver returns the resolver the builder orders chains with.
func (b *Builder) Resolver() *registry.Resolver {
	return b.resolver
}
