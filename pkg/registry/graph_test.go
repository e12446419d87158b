package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_RequireIsIdempotent(t *testing.T) {
	g := registry.NewGraph()
	a := g.Require("Slopes", "slopes")
	b := g.Require("Other name", "slopes", registry.WithVariant(domain.VariantMatrix))

	assert.Same(t, a, b)
	assert.Equal(t, "Slopes", b.Name)
	assert.Equal(t, domain.VariantSource, b.Variant, "options must not apply to an existing kind")
	assert.Len(t, g.Kinds(), 1)
}

func TestGraph_RequireConcurrent(t *testing.T) {
	g := registry.NewGraph()
	const n = 32

	var wg sync.WaitGroup
	got := make([]*domain.Kind, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = g.Require("Slopes", "slopes")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Len(t, g.Kinds(), 1)
}

func TestGraph_AddPrerequisite(t *testing.T) {
	g := registry.NewGraph()
	slopes := g.Require("Slopes", "slopes")
	pp := g.Require("Pseudophase", "pseudophase", registry.WithVariant(domain.VariantMatrix))

	require.NoError(t, g.AddPrerequisite(pp, slopes))
	require.NoError(t, g.AddPrerequisite(pp, slopes))
	assert.Equal(t, []domain.Edge{{Source: "pseudophase", Prerequisite: "slopes"}}, g.Edges())

	t.Run("Self Edge", func(t *testing.T) {
		err := g.AddPrerequisite(pp, pp)
		assert.True(t, domain.IsStructural(err))
	})

	t.Run("Foreign Kind", func(t *testing.T) {
		foreign := &domain.Kind{Key: "slopes", Name: "Slopes"}
		err := g.AddPrerequisite(pp, foreign)
		assert.True(t, domain.IsStructural(err))
	})

	t.Run("Nil Kind", func(t *testing.T) {
		err := g.AddPrerequisite(nil, slopes)
		assert.True(t, domain.IsStructural(err))
	})
}

func TestGraph_SyncAndLoad(t *testing.T) {
	ctx := context.Background()
	g := registry.NewGraph()
	slopes := g.Require("Slopes", "slopes")
	sx := g.Require("X slopes", "sx", registry.WithVariant(domain.VariantSlice),
		registry.WithParams(map[string]any{"source": "slopes", "stop": 144}))
	require.NoError(t, g.AddPrerequisite(sx, slopes))

	index := memory.NewIndex()
	require.NoError(t, g.Sync(ctx, index))
	// A second sync must not duplicate anything.
	require.NoError(t, g.Sync(ctx, index))

	loaded, err := registry.LoadGraph(ctx, index)
	require.NoError(t, err)
	assert.Equal(t, registry.Names(g.Kinds()), registry.Names(loaded.Kinds()))
	assert.Equal(t, g.Edges(), loaded.Edges())

	k, ok := loaded.Kind("sx")
	require.True(t, ok)
	assert.Equal(t, domain.VariantSlice, k.Variant)
	assert.Equal(t, "slopes", k.Params["source"])
}
