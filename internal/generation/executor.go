// Package generation runs single generation steps: one kind for one dataset.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
)

// Materialization is the outcome of a successful step.
type Materialization struct {
	Artifact domain.Artifact
	// Reused is true when no computation ran: the row already existed, or a
	// source key found in storage was adopted.
	Reused bool
}

// Executor runs generation steps. It does not lock; callers serialize
// writers per dataset.
type Executor struct {
	adapter    *artifacts.Adapter
	resolver   *registry.Resolver
	generators *registry.Generators
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an Executor over the adapter's graph.
func NewExecutor(adapter *artifacts.Adapter, generators *registry.Generators, opts ...Option) *Executor {
	e := &Executor{
		adapter:    adapter,
		resolver:   registry.NewResolver(adapter.Graph()),
		generators: generators,
		logger:     logging.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate materializes key for ds and returns its artifact row.
func (e *Executor) Generate(ctx context.Context, ds domain.Dataset, key string, force bool) (domain.Artifact, error) {
	m, err := e.Materialize(ctx, ds, key, force)
	return m.Artifact, err
}

// Materialize is Generate that also reports whether computation was skipped.
//
// Without force an existing row is returned unchanged. With force, or when no
// row exists, every direct prerequisite must be materialized; the stale
// key/row pair is removed, the generator runs, and the result is written and
// committed as one unit. Compute and persistence failures are returned as
// *domain.GenerationFailedError with nothing committed.
func (e *Executor) Materialize(ctx context.Context, ds domain.Dataset, key string, force bool) (Materialization, error) {
	kind, ok := e.adapter.Graph().Kind(key)
	if !ok {
		return Materialization{}, &domain.StructuralError{Kind: key, Reason: domain.ErrKindNotFound.Error()}
	}

	// 1. Idempotence.
	if !force {
		existing, err := e.adapter.Index().Artifact(ctx, ds.ID, key)
		if err == nil {
			return Materialization{Artifact: existing, Reused: true}, nil
		}
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			return Materialization{}, fmt.Errorf("failed to look up artifact %q of dataset %s: %w", key, ds.ID, err)
		}
	}

	if !kind.Generatable() {
		return e.adopt(ctx, ds, kind)
	}

	// 2. Precondition: direct prerequisites are materialized.
	prereqs, err := e.resolver.DirectPrerequisites(key)
	if err != nil {
		return Materialization{}, err
	}
	prereqKeys := registry.Names(prereqs)
	var missing []string
	for _, p := range prereqKeys {
		ok, err := e.adapter.Materialized(ctx, ds.ID, p)
		if err != nil {
			return Materialization{}, err
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Materialization{}, &domain.MissingPrerequisiteError{Dataset: ds.ID, Kind: key, Missing: missing}
	}

	gen, err := e.generators.For(*kind)
	if err != nil {
		return Materialization{}, e.failed(ds, key, err)
	}

	var art domain.Artifact
	err = e.adapter.With(ctx, ds, func(h ports.Handle) error {
		// 3. Force: drop the stale pair before computing.
		if force {
			if err := e.purge(ctx, h, ds.ID, key); err != nil {
				return err
			}
		}

		// 4. Compute against a read-only view of the prerequisites.
		in := &inputs{handle: h, dataset: ds, kind: *kind, allowed: prereqKeys}
		out, err := generate(ctx, gen, in)
		if err != nil {
			return err
		}
		if err := out.CheckOutput(); err != nil {
			return err
		}

		// 5. Write + commit as one unit.
		art, err = e.persist(ctx, h, ds.ID, key, out)
		return err
	})
	if err != nil {
		return Materialization{}, e.failed(ds, key, err)
	}

	e.logger.Debug("Generated artifact", "dataset", ds.ID, "kind", key, "force", force)
	return Materialization{Artifact: art}, nil
}

// persist records the row, writes value and commits. On any failure the
// transaction is rolled back and the written key removed, unless the failure
// is a row another writer committed first: that key now backs its row.
func (e *Executor) persist(ctx context.Context, h ports.Handle, datasetID, key string, value domain.Array) (art domain.Artifact, err error) {
	tx, err := e.adapter.Index().Begin(ctx)
	if err != nil {
		return art, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed, written := false, false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil {
			e.logger.Warn("Failed to roll back artifact transaction", "dataset", datasetID, "kind", key, "err", rerr)
		}
		if !written || errors.Is(err, domain.ErrArtifactExists) {
			return
		}
		// The caller's context may be the reason we are here.
		if derr := h.Delete(context.WithoutCancel(ctx), key); derr != nil {
			e.logger.Warn("Failed to remove partially written key", "dataset", datasetID, "kind", key, "err", derr)
		}
	}()

	art = domain.Artifact{DatasetID: datasetID, Key: key, Created: e.now()}
	if err = tx.InsertArtifact(ctx, art); err != nil {
		return art, fmt.Errorf("failed to record artifact %q: %w", key, err)
	}
	written = true
	if err = h.Put(ctx, key, value); err != nil {
		return art, fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return art, fmt.Errorf("failed to commit artifact %q: %w", key, err)
	}
	committed = true
	return art, nil
}

// purge deletes the row and the key of a stale artifact, row first.
func (e *Executor) purge(ctx context.Context, h ports.Handle, datasetID, key string) error {
	tx, err := e.adapter.Index().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := tx.DeleteArtifact(ctx, datasetID, key); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to delete stale artifact %q: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stale artifact removal %q: %w", key, err)
	}
	if err := h.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete stale key %q: %w", key, err)
	}
	return nil
}

// adopt records a source key that ingest wrote but the index does not know.
// Source kinds cannot be computed, so a missing key fails the step.
func (e *Executor) adopt(ctx context.Context, ds domain.Dataset, kind *domain.Kind) (Materialization, error) {
	var present bool
	err := e.adapter.With(ctx, ds, func(h ports.Handle) error {
		var err error
		present, err = h.Has(ctx, kind.Key)
		return err
	})
	if err != nil {
		return Materialization{}, e.failed(ds, kind.Key, err)
	}
	if !present {
		return Materialization{}, e.failed(ds, kind.Key, domain.ErrNotGeneratable)
	}

	art := domain.Artifact{DatasetID: ds.ID, Key: kind.Key, Created: e.now()}
	tx, err := e.adapter.Index().Begin(ctx)
	if err != nil {
		return Materialization{}, e.failed(ds, kind.Key, err)
	}
	err = tx.InsertArtifact(ctx, art)
	if err == nil {
		err = tx.Commit(ctx)
	} else {
		_ = tx.Rollback(ctx)
	}
	if errors.Is(err, domain.ErrArtifactExists) {
		existing, lerr := e.adapter.Index().Artifact(ctx, ds.ID, kind.Key)
		if lerr == nil {
			return Materialization{Artifact: existing, Reused: true}, nil
		}
		err = lerr
	}
	if err != nil {
		return Materialization{}, e.failed(ds, kind.Key, err)
	}
	return Materialization{Artifact: art, Reused: true}, nil
}

// generate runs gen, turning a panic into an error so that one bad
// generator fails its step and not the batch.
func generate(ctx context.Context, gen ports.Generator, in ports.Inputs) (out domain.Array, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return gen.Generate(ctx, in)
}

func (e *Executor) failed(ds domain.Dataset, key string, cause error) error {
	e.logger.Debug("Generation failed", "dataset", ds.ID, "kind", key, "err", cause)
	return &domain.GenerationFailedError{Dataset: ds.ID, Kind: key, Cause: cause}
}
