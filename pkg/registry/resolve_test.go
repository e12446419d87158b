package registry_test

import (
	"errors"
	"testing"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pseudophaseGraph builds slopes -> pseudophase -> pseudophase-psd -> pseudophase-etf.
func pseudophaseGraph(t *testing.T) *registry.Graph {
	t.Helper()
	g := registry.NewGraph()
	slopes := g.Require("Slopes", "slopes")
	pp := g.Require("Pseudophase", "pseudophase", registry.WithVariant(domain.VariantMatrix))
	psd := g.Require("Pseudophase PSD", "pseudophase-psd", registry.WithVariant(domain.VariantPeriodogram))
	etf := g.Require("Pseudophase ETF", "pseudophase-etf", registry.WithVariant(domain.VariantRatio))
	require.NoError(t, g.AddPrerequisite(pp, slopes))
	require.NoError(t, g.AddPrerequisite(psd, pp))
	require.NoError(t, g.AddPrerequisite(etf, psd))
	return g
}

func TestResolver_Chain(t *testing.T) {
	r := registry.NewResolver(pseudophaseGraph(t))

	order, err := r.TransitiveClosureSorted("pseudophase-etf")
	require.NoError(t, err)
	assert.Equal(t, []string{"slopes", "pseudophase", "pseudophase-psd", "pseudophase-etf"}, registry.Names(order))

	order, err = r.TransitiveClosureSorted("pseudophase")
	require.NoError(t, err)
	assert.Equal(t, []string{"slopes", "pseudophase"}, registry.Names(order))

	order, err = r.TransitiveClosureSorted("slopes")
	require.NoError(t, err)
	assert.Equal(t, []string{"slopes"}, registry.Names(order))
}

func TestResolver_DiamondOrdering(t *testing.T) {
	// top requires left and right; both require root. Registration puts
	// right before left, so right must be emitted first.
	g := registry.NewGraph()
	top := g.Require("Top", "top", registry.WithVariant(domain.VariantRatio))
	right := g.Require("Right", "right", registry.WithVariant(domain.VariantSlice))
	left := g.Require("Left", "left", registry.WithVariant(domain.VariantSlice))
	root := g.Require("Root", "root")
	require.NoError(t, g.AddPrerequisite(top, left))
	require.NoError(t, g.AddPrerequisite(top, right))
	require.NoError(t, g.AddPrerequisite(left, root))
	require.NoError(t, g.AddPrerequisite(right, root))

	r := registry.NewResolver(g)
	order, err := r.TransitiveClosureSorted("top")
	require.NoError(t, err)
	keys := registry.Names(order)
	assert.Equal(t, []string{"root", "right", "left", "top"}, keys)

	// Every kind appears exactly once and after all of its prerequisites.
	seen := map[string]int{}
	for i, k := range keys {
		_, dup := seen[k]
		assert.False(t, dup, "duplicate %s", k)
		seen[k] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, seen[e.Prerequisite], seen[e.Source], "%s must precede %s", e.Prerequisite, e.Source)
	}

	// Stable across calls.
	again, err := r.TransitiveClosureSorted("top")
	require.NoError(t, err)
	assert.Equal(t, keys, registry.Names(again))
}

func TestResolver_Cycle(t *testing.T) {
	g := registry.NewGraph()
	a := g.Require("A", "A", registry.WithVariant(domain.VariantSlice))
	b := g.Require("B", "B", registry.WithVariant(domain.VariantSlice))
	root := g.Require("Root", "root")
	require.NoError(t, g.AddPrerequisite(a, b))
	require.NoError(t, g.AddPrerequisite(b, a))
	require.NoError(t, g.AddPrerequisite(a, root))

	_, err := registry.NewResolver(g).TransitiveClosureSorted("A")
	require.Error(t, err)

	var se *domain.StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"A", "B"}, se.Unresolved)
	assert.Contains(t, err.Error(), "{A, B}")
}

func TestResolver_UnknownKind(t *testing.T) {
	r := registry.NewResolver(registry.NewGraph())
	_, err := r.TransitiveClosureSorted("nope")
	assert.True(t, domain.IsStructural(err))

	_, err = r.DirectPrerequisites("nope")
	assert.True(t, domain.IsStructural(err))
}

func TestResolver_DirectPrerequisites(t *testing.T) {
	r := registry.NewResolver(pseudophaseGraph(t))
	direct, err := r.DirectPrerequisites("pseudophase-psd")
	require.NoError(t, err)
	assert.Equal(t, []string{"pseudophase"}, registry.Names(direct))

	direct, err = r.DirectPrerequisites("slopes")
	require.NoError(t, err)
	assert.Empty(t, direct)
}
