package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/testutils"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/adapters/redis"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setupRedis(t)
	ports.RunArtifactStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_Layout(t *testing.T) {
	mr, client := setupRedis(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()
	ds := domain.Dataset{ID: "ds-1", Locator: "20160316/ds-1"}

	h, err := store.Open(ctx, ds)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Put(ctx, "periodogram/slopes", domain.Array{Shape: []int{1}, Data: []float64{2}}))

	assert.Equal(t, "test:dataset:20160316/ds-1", store.HashKey(ds))
	assert.Equal(t, `{"shape":[1],"data":[2]}`, mr.HGet(store.HashKey(ds), "periodogram/slopes"))
}

func TestRedisStore_ExternalMutationReconciles(t *testing.T) {
	mr, client := setupRedis(t)
	store := redis.NewFromClient(client)
	index := memory.NewIndex()
	ctx := context.Background()
	ds := testutils.Dataset(t, index, "ds-1")
	adapter := artifacts.New(store, index, testutils.PseudophaseGraph(t))

	// Ingest writes straight into the hash.
	mr.HSet(store.HashKey(ds), testutils.Slopes, `{"shape":[2,5],"data":[1,2,3,4,5,6,7,8,9,10]}`)
	report, err := adapter.Reconcile(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.Slopes}, report.Added)
	assert.Equal(t, 5, report.Samples)

	// A corrupt value makes the dataset invalid.
	mr.HSet(store.HashKey(ds), testutils.Slopes, `not json`)
	_, err = adapter.Reconcile(ctx, ds)
	var ce *domain.ConsistencyError
	assert.ErrorAs(t, err, &ce)

	got, err := index.Dataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.False(t, got.Valid)
}

func TestRedisStore_Discover(t *testing.T) {
	mr, client := setupRedis(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	mr.HSet("telemetry:dataset:2016-03-16", "slopes", `{"shape":[1],"data":[1]}`)
	mr.HSet("telemetry:dataset:bench", "slopes", `{"shape":[1],"data":[1]}`)
	mr.Set("telemetry:lock:bench", "token")

	found, err := store.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "2016-03-16", found[0].ID)
	assert.Equal(t, 2016, found[0].Created.Year())
	assert.Equal(t, "bench", found[1].ID)
}
