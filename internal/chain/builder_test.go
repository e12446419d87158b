package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/chain"
	"github.com/aretw0/telemetry/internal/testutils"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*chain.Builder, *memory.Store, *memory.Index) {
	t.Helper()
	store := memory.NewStore()
	index := memory.NewIndex()
	adapter := artifacts.New(store, index, testutils.PseudophaseGraph(t))
	return chain.NewBuilder(adapter), store, index
}

func TestBuild_EmptyDataset(t *testing.T) {
	b, _, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")

	steps, err := b.Build(context.Background(), ds, testutils.PseudophaseETF, false)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{testutils.Slopes, testutils.Pseudophase, testutils.PseudophasePSD, testutils.PseudophaseETF},
		chain.Kinds(steps))
	for _, s := range steps {
		assert.False(t, s.Force)
		assert.Equal(t, ds.ID, s.Dataset.ID)
	}
}

func TestBuild_PartiallyMaterialized(t *testing.T) {
	b, store, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")
	testutils.Commit(t, store, index, ds, testutils.Slopes, testutils.Ramp(2, 3))
	testutils.Commit(t, store, index, ds, testutils.Pseudophase, testutils.Ramp(2, 3))

	steps, err := b.Build(context.Background(), ds, testutils.PseudophaseETF, false)
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.PseudophasePSD, testutils.PseudophaseETF}, chain.Kinds(steps))
}

func TestBuild_ForceAffectsTargetOnly(t *testing.T) {
	b, store, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")
	testutils.Commit(t, store, index, ds, testutils.Slopes, testutils.Ramp(2, 3))
	testutils.Commit(t, store, index, ds, testutils.Pseudophase, testutils.Ramp(2, 3))

	steps, err := b.Build(context.Background(), ds, testutils.Pseudophase, true)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, testutils.Pseudophase, steps[0].Kind)
	assert.True(t, steps[0].Force)

	steps, err = b.Build(context.Background(), ds, testutils.PseudophaseETF, true)
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.PseudophasePSD, testutils.PseudophaseETF}, chain.Kinds(steps))
	assert.False(t, steps[0].Force)
	assert.True(t, steps[1].Force)
}

func TestBuild_FullyMaterialized(t *testing.T) {
	b, store, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")
	testutils.Commit(t, store, index, ds, testutils.Slopes, testutils.Ramp(2, 3))

	steps, err := b.Build(context.Background(), ds, testutils.Slopes, false)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestBuildWith_NonRecursive(t *testing.T) {
	b, _, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")

	steps, err := b.BuildWith(context.Background(), ds, testutils.PseudophaseETF, chain.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.PseudophaseETF}, chain.Kinds(steps))
}

func TestBuild_InvalidDataset(t *testing.T) {
	b, _, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")
	ds.Valid = false
	ds.Error = "unreadable"

	_, err := b.Build(context.Background(), ds, testutils.Pseudophase, false)
	var ce *domain.ConsistencyError
	assert.True(t, errors.As(err, &ce))
}

func TestBuild_UnknownTarget(t *testing.T) {
	b, _, index := setup(t)
	ds := testutils.Dataset(t, index, "ds-1")

	_, err := b.Build(context.Background(), ds, "nope", false)
	assert.True(t, domain.IsStructural(err))
}
