package generation_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/generation"
	"github.com/aretw0/telemetry/internal/testutils"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *testutils.FaultyStore
	index    *memory.Index
	adapter  *artifacts.Adapter
	gens     *registry.Generators
	executor *generation.Executor
	ds       domain.Dataset
	calls    atomic.Int64
}

// setup wires every generatable variant of the pseudophase graph to a
// generator that scales its single prerequisite by the call count.
func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: testutils.NewFaultyStore(),
		index: memory.NewIndex(),
		gens:  registry.NewGenerators(),
	}
	f.adapter = artifacts.New(f.store, f.index, testutils.PseudophaseGraph(t))
	f.ds = testutils.Dataset(t, f.index, "ds-1")

	scale := ports.GeneratorFunc(func(ctx context.Context, in ports.Inputs) (domain.Array, error) {
		n := f.calls.Add(1)
		src, err := in.Read(ctx, in.Prerequisites()[0])
		if err != nil {
			return domain.Array{}, err
		}
		for i := range src.Data {
			src.Data[i] *= float64(n)
		}
		return src, nil
	})
	for _, v := range []domain.Variant{domain.VariantMatrix, domain.VariantPeriodogram, domain.VariantRatio} {
		f.gens.RegisterGenerator(v, scale)
	}
	f.executor = generation.NewExecutor(f.adapter, f.gens)
	return f
}

func (f *fixture) read(t *testing.T, key string) (domain.Array, error) {
	t.Helper()
	var v domain.Array
	err := f.adapter.With(context.Background(), f.ds, func(h ports.Handle) error {
		var err error
		v, err = h.Get(context.Background(), key)
		return err
	})
	return v, err
}

func (f *fixture) rows(t *testing.T) int {
	t.Helper()
	rows, err := f.index.Artifacts(context.Background(), f.ds.ID)
	require.NoError(t, err)
	return len(rows)
}

func TestExecutor_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	first, err := f.executor.Materialize(ctx, f.ds, testutils.Pseudophase, false)
	require.NoError(t, err)
	assert.False(t, first.Reused)

	second, err := f.executor.Materialize(ctx, f.ds, testutils.Pseudophase, false)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Artifact, second.Artifact)

	assert.Equal(t, int64(1), f.calls.Load(), "second call must not recompute")
	assert.Equal(t, 2, f.rows(t))
}

func TestExecutor_ForceOverwrites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	require.NoError(t, err)
	v1, err := f.read(t, testutils.Pseudophase)
	require.NoError(t, err)

	_, err = f.executor.Generate(ctx, f.ds, testutils.Pseudophase, true)
	require.NoError(t, err)
	v2, err := f.read(t, testutils.Pseudophase)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v1.Data)
	assert.Equal(t, []float64{2, 4, 6, 8, 10, 12}, v2.Data, "contents reflect the latest computation")
	assert.Equal(t, 2, f.rows(t), "exactly one row per kind")
}

func TestExecutor_MissingPrerequisite(t *testing.T) {
	f := setup(t)

	_, err := f.executor.Generate(context.Background(), f.ds, testutils.PseudophasePSD, false)
	var mp *domain.MissingPrerequisiteError
	require.True(t, errors.As(err, &mp))
	assert.Equal(t, []string{testutils.Pseudophase}, mp.Missing)
	assert.Equal(t, int64(0), f.calls.Load(), "no computation attempted")
}

func TestExecutor_FailedWriteLeavesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))
	f.store.Set(func(s *testutils.FaultyStore) { s.FailPut = true })

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	var gf *domain.GenerationFailedError
	require.True(t, errors.As(err, &gf))
	assert.Equal(t, testutils.Pseudophase, gf.Kind)
	assert.Equal(t, f.ds.ID, gf.Dataset)
	assert.ErrorIs(t, err, testutils.ErrInjected)

	_, err = f.read(t, testutils.Pseudophase)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound, "partial write must be removed")
	_, err = f.index.Artifact(ctx, f.ds.ID, testutils.Pseudophase)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestExecutor_GeneratorFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	boom := errors.New("singular matrix")
	f.gens.RegisterGenerator(domain.VariantMatrix, ports.GeneratorFunc(
		func(context.Context, ports.Inputs) (domain.Array, error) { return domain.Array{}, boom }))

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	var gf *domain.GenerationFailedError
	require.True(t, errors.As(err, &gf))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.rows(t))
}

func TestExecutor_GeneratorPanic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	f.gens.RegisterGenerator(domain.VariantMatrix, ports.GeneratorFunc(
		func(context.Context, ports.Inputs) (domain.Array, error) {
			var rows []float64
			_ = rows[100]
			return domain.Array{}, nil
		}))

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	var gf *domain.GenerationFailedError
	require.True(t, errors.As(err, &gf))
	assert.Equal(t, testutils.Pseudophase, gf.Kind)
	assert.Contains(t, err.Error(), "generator panicked")
	assert.Equal(t, 1, f.rows(t))
	assert.Equal(t, 0, f.store.Outstanding())
}

func TestExecutor_RejectsDegenerateOutput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))

	f.gens.RegisterGenerator(domain.VariantMatrix, ports.GeneratorFunc(
		func(context.Context, ports.Inputs) (domain.Array, error) { return domain.NewArray(2, 3), nil }))

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	assert.ErrorIs(t, err, domain.ErrDegenerateOutput)
	_, err = f.read(t, testutils.Pseudophase)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestExecutor_InputsAreRestricted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Slopes, testutils.Ramp(2, 3))
	testutils.Commit(t, f.store, f.index, f.ds, testutils.Tweeter, testutils.Ramp(1, 3))

	var readErr error
	f.gens.RegisterGenerator(domain.VariantMatrix, ports.GeneratorFunc(
		func(ctx context.Context, in ports.Inputs) (domain.Array, error) {
			assert.Equal(t, []string{testutils.Slopes}, in.Prerequisites())
			assert.Equal(t, testutils.Pseudophase, in.Kind().Key)
			_, readErr = in.Read(ctx, testutils.Tweeter)
			return in.Read(ctx, testutils.Slopes)
		}))

	_, err := f.executor.Generate(ctx, f.ds, testutils.Pseudophase, false)
	require.NoError(t, err)
	assert.Error(t, readErr)
}

func TestExecutor_SourceKinds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("Absent", func(t *testing.T) {
		_, err := f.executor.Generate(ctx, f.ds, testutils.Slopes, false)
		assert.ErrorIs(t, err, domain.ErrNotGeneratable)
	})

	t.Run("Adopted From Storage", func(t *testing.T) {
		f.store.Seed(f.ds.ID, map[string]domain.Array{testutils.Slopes: testutils.Ramp(2, 3)})
		m, err := f.executor.Materialize(ctx, f.ds, testutils.Slopes, false)
		require.NoError(t, err)
		assert.True(t, m.Reused)
		assert.Equal(t, testutils.Slopes, m.Artifact.Key)
		assert.Equal(t, 1, f.rows(t))
	})
}

func TestExecutor_UnknownKind(t *testing.T) {
	f := setup(t)
	_, err := f.executor.Generate(context.Background(), f.ds, "nope", false)
	assert.True(t, domain.IsStructural(err))
}
