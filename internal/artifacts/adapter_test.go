package artifacts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/testutils"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *testutils.FaultyStore
	index   *memory.Index
	adapter *artifacts.Adapter
	ds      domain.Dataset
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := testutils.NewFaultyStore()
	index := memory.NewIndex()
	return fixture{
		store:   store,
		index:   index,
		adapter: artifacts.New(store, index, testutils.PseudophaseGraph(t)),
		ds:      testutils.Dataset(t, index, "ds-1"),
	}
}

func TestAdapter_WithReleasesHandle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		err := f.adapter.With(ctx, f.ds, func(h ports.Handle) error {
			return h.Put(ctx, testutils.Slopes, testutils.Ramp(2, 3))
		})
		require.NoError(t, err)
		assert.Equal(t, 0, f.store.Outstanding())
	})

	t.Run("Error", func(t *testing.T) {
		boom := errors.New("boom")
		err := f.adapter.With(ctx, f.ds, func(ports.Handle) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, f.store.Outstanding())
	})

	t.Run("Panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = f.adapter.With(ctx, f.ds, func(ports.Handle) error { panic("boom") })
		})
		assert.Equal(t, 0, f.store.Outstanding())
	})

	t.Run("Open Failure", func(t *testing.T) {
		f.store.Set(func(s *testutils.FaultyStore) { s.FailOpen = true })
		defer f.store.Set(func(s *testutils.FaultyStore) { s.FailOpen = false })

		called := false
		err := f.adapter.With(ctx, f.ds, func(ports.Handle) error { called = true; return nil })
		assert.ErrorIs(t, err, testutils.ErrInjected)
		assert.False(t, called)
	})
}

func TestAdapter_ArtifactsSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	snap, err := f.adapter.Artifacts(ctx, f.ds.ID)
	require.NoError(t, err)
	assert.Contains(t, snap, testutils.Slopes)

	testutils.Commit(t, f.store, f.index, f.ds, testutils.Pseudophase, testutils.Ramp(1, 6))
	assert.NotContains(t, snap, testutils.Pseudophase, "snapshot must not change after the call")

	ok, err := f.adapter.Materialized(ctx, f.ds.ID, testutils.Pseudophase)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.adapter.Materialized(ctx, f.ds.ID, testutils.PseudophaseETF)
	require.NoError(t, err)
	assert.False(t, ok)
}
