package ports

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunArtifactStoreContract runs a suite of tests to verify that an ArtifactStore
// implementation adheres to the Handle contract.
func RunArtifactStoreContract(t *testing.T, store ArtifactStore) {
	ctx := context.Background()
	ds := domain.Dataset{
		ID:      "contract-" + time.Now().Format("20060102150405.000000000"),
		Locator: t.TempDir(),
		Valid:   true,
	}
	value := domain.Array{Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}}

	t.Run("Put and Get", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		require.NoError(t, h.Put(ctx, "slopes", value))

		got, err := h.Get(ctx, "slopes")
		require.NoError(t, err)
		assert.Equal(t, value.Shape, got.Shape)
		assert.Equal(t, value.Data, got.Data)

		ok, err := h.Has(ctx, "slopes")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Visible After Reopen", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		got, err := h.Get(ctx, "slopes")
		require.NoError(t, err)
		assert.Equal(t, value.Data, got.Data)
	})

	t.Run("Namespaced Keys", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		require.NoError(t, h.Put(ctx, "periodogram/slopes", value))
		keys, err := h.Keys(ctx)
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"periodogram/slopes", "slopes"}, keys)
	})

	t.Run("Overwrite", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		next := domain.Array{Shape: []int{1}, Data: []float64{42}}
		require.NoError(t, h.Put(ctx, "slopes", next))
		got, err := h.Get(ctx, "slopes")
		require.NoError(t, err)
		assert.Equal(t, next.Data, got.Data)
	})

	t.Run("Get Missing", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		_, err = h.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)

		ok, err := h.Has(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		h, err := store.Open(ctx, ds)
		require.NoError(t, err)
		defer h.Close()

		require.NoError(t, h.Delete(ctx, "periodogram/slopes"))
		ok, err := h.Has(ctx, "periodogram/slopes")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting twice is fine.
		assert.NoError(t, h.Delete(ctx, "periodogram/slopes"))
	})

	t.Run("Datasets Are Isolated", func(t *testing.T) {
		other := domain.Dataset{ID: ds.ID + "-other", Locator: t.TempDir(), Valid: true}
		h, err := store.Open(ctx, other)
		require.NoError(t, err)
		defer h.Close()

		keys, err := h.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

// RunIndexContract runs a suite of tests to verify that an Index implementation
// adheres to the defined interface contract. The index must be empty.
func RunIndexContract(t *testing.T, index Index) {
	ctx := context.Background()
	day := time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC)

	t.Run("RequireKind Is Idempotent", func(t *testing.T) {
		first, err := index.RequireKind(ctx, domain.Kind{Key: "slopes", Name: "Slopes", Variant: domain.VariantSource})
		require.NoError(t, err)
		second, err := index.RequireKind(ctx, domain.Kind{Key: "slopes", Name: "Other name"})
		require.NoError(t, err)
		assert.Equal(t, first, second, "second call must return the persisted row")

		kinds, err := index.Kinds(ctx)
		require.NoError(t, err)
		assert.Len(t, kinds, 1)
	})

	t.Run("RequireKind Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = index.RequireKind(ctx, domain.Kind{Key: "pseudophase", Name: "Pseudo phase", Variant: domain.VariantMatrix})
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		kinds, err := index.Kinds(ctx)
		require.NoError(t, err)
		assert.Len(t, kinds, 2)
	})

	t.Run("AddPrerequisite Is Idempotent", func(t *testing.T) {
		edge := domain.Edge{Source: "pseudophase", Prerequisite: "slopes"}
		require.NoError(t, index.AddPrerequisite(ctx, edge))
		require.NoError(t, index.AddPrerequisite(ctx, edge))
		edges, err := index.Prerequisites(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Edge{edge}, edges)
	})

	t.Run("Datasets", func(t *testing.T) {
		require.NoError(t, index.PutDataset(ctx, domain.Dataset{ID: "ds-2", Locator: "/b", Created: day.Add(2 * time.Hour), Valid: true}))
		require.NoError(t, index.PutDataset(ctx, domain.Dataset{ID: "ds-1", Locator: "/a", Created: day.Add(time.Hour), Valid: true}))
		require.NoError(t, index.PutDataset(ctx, domain.Dataset{ID: "ds-3", Locator: "/c", Created: day.AddDate(0, 0, 1), Valid: true}))

		got, err := index.Dataset(ctx, "ds-1")
		require.NoError(t, err)
		assert.Equal(t, "/a", got.Locator)
		assert.True(t, got.Valid)

		_, err = index.Dataset(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDatasetNotFound)

		list, err := index.Datasets(ctx, domain.DayFilter(day, 1))
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ds-1", list[0].ID)
		assert.Equal(t, "ds-2", list[1].ID)
	})

	t.Run("Dataset Status", func(t *testing.T) {
		require.NoError(t, index.SetDatasetStatus(ctx, "ds-3", domain.DatasetStatus{Valid: false, Error: "unreadable"}))
		got, err := index.Dataset(ctx, "ds-3")
		require.NoError(t, err)
		assert.False(t, got.Valid)
		assert.Equal(t, "unreadable", got.Error)

		list, err := index.Datasets(ctx, domain.DatasetFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 2, "invalid datasets are excluded by default")

		list, err = index.Datasets(ctx, domain.DatasetFilter{IncludeInvalid: true})
		require.NoError(t, err)
		assert.Len(t, list, 3)

		require.NoError(t, index.SetDatasetStatus(ctx, "ds-3", domain.DatasetStatus{Valid: true, Samples: 128}))
		got, err = index.Dataset(ctx, "ds-3")
		require.NoError(t, err)
		assert.True(t, got.Valid)
		assert.Empty(t, got.Error)
		assert.Equal(t, 128, got.Samples)

		assert.ErrorIs(t, index.SetDatasetStatus(ctx, "missing", domain.DatasetStatus{}), domain.ErrDatasetNotFound)
	})

	t.Run("Artifact Commit", func(t *testing.T) {
		tx, err := index.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertArtifact(ctx, domain.Artifact{DatasetID: "ds-1", Key: "slopes", Created: day}))
		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

		a, err := index.Artifact(ctx, "ds-1", "slopes")
		require.NoError(t, err)
		assert.Equal(t, "slopes", a.Key)
		assert.Equal(t, "ds-1", a.DatasetID)
	})

	t.Run("Artifact Rollback", func(t *testing.T) {
		tx, err := index.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertArtifact(ctx, domain.Artifact{DatasetID: "ds-1", Key: "pseudophase", Created: day}))
		require.NoError(t, tx.Rollback(ctx))

		_, err = index.Artifact(ctx, "ds-1", "pseudophase")
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	})

	t.Run("Artifact Uniqueness", func(t *testing.T) {
		tx, err := index.Begin(ctx)
		require.NoError(t, err)
		err = tx.InsertArtifact(ctx, domain.Artifact{DatasetID: "ds-1", Key: "slopes", Created: day})
		assert.ErrorIs(t, err, domain.ErrArtifactExists)
		require.NoError(t, tx.Rollback(ctx))

		list, err := index.Artifacts(ctx, "ds-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Artifact Delete", func(t *testing.T) {
		tx, err := index.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.DeleteArtifact(ctx, "ds-1", "slopes"))
		require.NoError(t, tx.DeleteArtifact(ctx, "ds-1", "never-there"))
		require.NoError(t, tx.Commit(ctx))

		list, err := index.Artifacts(ctx, "ds-1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Dataset Delete", func(t *testing.T) {
		tx, err := index.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertArtifact(ctx, domain.Artifact{DatasetID: "ds-2", Key: "slopes", Created: day}))
		require.NoError(t, tx.Commit(ctx))

		require.NoError(t, index.DeleteDataset(ctx, "ds-2"))
		_, err = index.Dataset(ctx, "ds-2")
		assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
		list, err := index.Artifacts(ctx, "ds-2")
		require.NoError(t, err)
		assert.Empty(t, list, "artifact rows go with their dataset")

		assert.ErrorIs(t, index.DeleteDataset(ctx, "ds-2"), domain.ErrDatasetNotFound)
		_, err = index.Dataset(ctx, "ds-1")
		assert.NoError(t, err, "other datasets are untouched")
	})
}
