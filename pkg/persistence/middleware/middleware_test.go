package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/telemetry/pkg/adapters/file"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/persistence/middleware"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset(id string) domain.Dataset {
	return domain.Dataset{ID: id, Locator: id, Created: time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC), Valid: true}
}

func TestChain_Contract(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := middleware.Chain(memory.NewStore(),
		middleware.NewValidationMiddleware(),
		middleware.NewLoggingMiddleware(logger),
	)
	ports.RunArtifactStoreContract(t, store)
	assert.Contains(t, buf.String(), "msg=Put")
}

func TestValidation_RejectsMalformed(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	store := middleware.Chain(inner, middleware.NewValidationMiddleware())

	h, err := store.Open(ctx, dataset("ds"))
	require.NoError(t, err)
	defer h.Close()

	err = h.Put(ctx, "bad", domain.Array{Shape: []int{2, 2}, Data: []float64{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ds/bad")

	has, err := h.Has(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestProtect(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	inner.Seed("ds", map[string]domain.Array{"slopes": {Shape: []int{1}, Data: []float64{1}}})
	store := middleware.Chain(inner, middleware.NewProtectMiddleware("slopes"))

	h, err := store.Open(ctx, dataset("ds"))
	require.NoError(t, err)
	defer h.Close()

	assert.ErrorIs(t, h.Put(ctx, "slopes", domain.Array{Shape: []int{1}, Data: []float64{2}}), middleware.ErrProtectedKey)
	assert.ErrorIs(t, h.Delete(ctx, "slopes"), middleware.ErrProtectedKey)

	v, err := h.Get(ctx, "slopes")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, v.Data)

	require.NoError(t, h.Put(ctx, "derived", domain.Array{Shape: []int{1}, Data: []float64{3}}))
	require.NoError(t, h.Delete(ctx, "derived"))
}

func TestDiscover_PassesThrough(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	fs := file.New(base)
	h, err := fs.Open(ctx, dataset("2016-03-16"))
	require.NoError(t, err)
	require.NoError(t, h.Put(ctx, "slopes", domain.Array{Shape: []int{1}, Data: []float64{1}}))
	require.NoError(t, h.Close())

	wrapped := middleware.Chain(fs, middleware.NewValidationMiddleware())
	d, ok := wrapped.(ports.Discoverer)
	require.True(t, ok)
	found, err := d.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2016-03-16", found[0].ID)

	// Memory stores cannot enumerate.
	found, err = middleware.Chain(memory.NewStore(), middleware.NewValidationMiddleware()).(ports.Discoverer).Discover(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}
