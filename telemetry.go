package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/telemetry/internal/artifacts"
	"github.com/aretw0/telemetry/internal/chain"
	"github.com/aretw0/telemetry/internal/generation"
	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/generators"
	"github.com/aretw0/telemetry/pkg/locking"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/aretw0/telemetry/pkg/scheduler"
)

// MakeOptions controls how a target is materialized.
type MakeOptions = chain.Options

// Step is one (dataset, kind) generation unit.
type Step = chain.Step

// Report describes what a reconcile changed.
type Report = artifacts.Report

// Engine is the high-level entry point: it wires storage, index, generators
// and the scheduler around one kind graph.
type Engine struct {
	graph      *registry.Graph
	store      ports.ArtifactStore
	index      ports.Index
	generators *registry.Generators
	locker     ports.DistributedLocker
	hooks      domain.LifecycleHooks
	logger     *slog.Logger

	workers     int
	lockTimeout time.Duration
	lockTTL     time.Duration

	adapter   *artifacts.Adapter
	builder   *chain.Builder
	locks     *locking.Manager
	scheduler *scheduler.Scheduler
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the keyed artifact storage (default: in-memory).
func WithStore(store ports.ArtifactStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithIndex sets the relational index (default: in-memory).
func WithIndex(index ports.Index) Option {
	return func(e *Engine) {
		e.index = index
	}
}

// WithGenerators replaces the generator registry. The default registry holds
// the reference generators of package generators.
func WithGenerators(r *registry.Generators) Option {
	return func(e *Engine) {
		e.generators = r
	}
}

// WithLocker adds a distributed lock so that several processes can share
// the same datasets.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkers bounds how many datasets are processed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLockTimeout bounds the wait for a dataset lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = d
	}
}

// New builds an Engine around graph. The graph is validated against the
// generator registry and persisted into the index.
func New(ctx context.Context, graph *registry.Graph, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, errors.New("graph is required")
	}
	e := &Engine{graph: graph}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.index == nil {
		e.index = memory.NewIndex()
	}
	if e.generators == nil {
		e.generators = registry.NewGenerators()
		generators.Register(e.generators)
	}

	// 1. Every generatable kind must have a generator with valid params.
	if err := e.generators.Validate(graph); err != nil {
		return nil, err
	}

	// 2. Persist kinds and edges.
	if err := graph.Sync(ctx, e.index); err != nil {
		return nil, fmt.Errorf("failed to sync graph: %w", err)
	}

	// 3. Wire the pipeline.
	e.adapter = artifacts.New(e.store, e.index, graph, artifacts.WithLogger(e.logger))
	e.builder = chain.NewBuilder(e.adapter)
	executor := generation.NewExecutor(e.adapter, e.generators, generation.WithLogger(e.logger))

	lockOpts := []locking.Option{locking.WithLogger(e.logger)}
	if e.locker != nil {
		lockOpts = append(lockOpts, locking.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		lockOpts = append(lockOpts, locking.WithTTL(e.lockTTL))
	}

	if e.lockTimeout <= 0 {
		e.lockTimeout = scheduler.DefaultLockTimeout
	}
	e.locks = locking.NewManager(lockOpts...)
	e.scheduler = scheduler.New(executor, e.builder,
		scheduler.WithWorkers(e.workers),
		scheduler.WithLockTimeout(e.lockTimeout),
		scheduler.WithLocks(e.locks),
		scheduler.WithHooks(e.hooks),
		scheduler.WithLogger(e.logger),
	)
	return e, nil
}

// Graph returns the kind graph.
func (e *Engine) Graph() *registry.Graph {
	return e.graph
}

// Kinds lists the registered kinds in registration order.
func (e *Engine) Kinds() []domain.Kind {
	kinds := e.graph.Kinds()
	out := make([]domain.Kind, len(kinds))
	for i, k := range kinds {
		out[i] = *k
	}
	return out
}

// Closure returns every kind needed to produce key, prerequisites first,
// key last.
func (e *Engine) Closure(key string) ([]domain.Kind, error) {
	kinds, err := e.builder.Resolver().TransitiveClosureSorted(key)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kind, len(kinds))
	for i, k := range kinds {
		out[i] = *k
	}
	return out, nil
}

// RegisterDataset records ds in the index and reconciles it with its storage.
func (e *Engine) RegisterDataset(ctx context.Context, ds domain.Dataset) (Report, error) {
	if ds.ID == "" {
		return Report{}, errors.New("dataset id is required")
	}
	if ds.Created.IsZero() {
		ds.Created = time.Now().UTC()
	}
	ds.Valid = true
	if err := e.index.PutDataset(ctx, ds); err != nil {
		return Report{}, err
	}
	return e.reconcile(ctx, ds)
}

// Discover registers the datasets the store can enumerate and the index does
// not know yet. It is a no-op for stores that cannot enumerate.
func (e *Engine) Discover(ctx context.Context) ([]Report, error) {
	d, ok := e.store.(ports.Discoverer)
	if !ok {
		return nil, nil
	}
	found, err := d.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, ds := range found {
		_, err := e.index.Dataset(ctx, ds.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrDatasetNotFound) {
			return reports, err
		}
		report, err := e.RegisterDataset(ctx, ds)
		if err != nil {
			var consistency *domain.ConsistencyError
			if errors.As(err, &consistency) {
				e.logger.Warn("Discovered dataset is unreadable", "dataset", ds.ID, "error", err)
				continue
			}
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Dataset returns one dataset.
func (e *Engine) Dataset(ctx context.Context, id string) (domain.Dataset, error) {
	return e.index.Dataset(ctx, id)
}

// Datasets lists datasets ordered by creation time.
func (e *Engine) Datasets(ctx context.Context, filter domain.DatasetFilter) ([]domain.Dataset, error) {
	return e.index.Datasets(ctx, filter)
}

// Artifacts returns a snapshot of the dataset's materialized artifacts.
func (e *Engine) Artifacts(ctx context.Context, datasetID string) (map[string]domain.Artifact, error) {
	return e.adapter.Artifacts(ctx, datasetID)
}

// ReconcileDataset re-synchronizes one dataset's index rows with its storage.
func (e *Engine) ReconcileDataset(ctx context.Context, id string) (Report, error) {
	ds, err := e.index.Dataset(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return e.reconcile(ctx, ds)
}

// reconcile holds the dataset lock that generation steps hold, so that a
// key written but not yet committed is never adopted.
func (e *Engine) reconcile(ctx context.Context, ds domain.Dataset) (Report, error) {
	var report Report
	err := e.locks.TryWithLock(ctx, ds.ID, e.lockTimeout, func(ctx context.Context) error {
		var err error
		report, err = e.adapter.Reconcile(ctx, ds)
		return err
	})
	if report.Dataset == "" {
		report.Dataset = ds.ID
	}
	return report, err
}

// Reconcile re-synchronizes every dataset selected by filter, invalid ones
// included. A dataset that cannot be read does not stop the others; its
// ConsistencyError is joined into the returned error.
func (e *Engine) Reconcile(ctx context.Context, filter domain.DatasetFilter) ([]Report, error) {
	filter.IncludeInvalid = true
	datasets, err := e.index.Datasets(ctx, filter)
	if err != nil {
		return nil, err
	}

	var (
		reports []Report
		errs    []error
	)
	for _, ds := range datasets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := e.reconcile(ctx, ds)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// RemoveDataset forgets one dataset and its artifact rows. Its storage is
// left in place; a store that can enumerate will offer it to Discover again.
func (e *Engine) RemoveDataset(ctx context.Context, id string) error {
	return e.locks.TryWithLock(ctx, id, e.lockTimeout, func(ctx context.Context) error {
		return e.index.DeleteDataset(ctx, id)
	})
}

// RemoveDatasets removes every dataset selected by filter, invalid ones
// included, and returns the removed IDs. A busy dataset is kept and its
// error joined into the result.
func (e *Engine) RemoveDatasets(ctx context.Context, filter domain.DatasetFilter) ([]string, error) {
	filter.IncludeInvalid = true
	datasets, err := e.index.Datasets(ctx, filter)
	if err != nil {
		return nil, err
	}

	var (
		removed []string
		errs    []error
	)
	for _, ds := range datasets {
		if err := e.RemoveDataset(ctx, ds.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, ds.ID)
	}
	if len(removed) > 0 {
		e.logger.Info("Datasets removed", "count", len(removed))
	}
	return removed, errors.Join(errs...)
}

// Plan returns the steps a Make would run on one dataset.
func (e *Engine) Plan(ctx context.Context, datasetID, target string, opts MakeOptions) ([]Step, error) {
	ds, err := e.index.Dataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return e.builder.BuildWith(ctx, ds, target, opts)
}

// Make materializes target on every dataset selected by filter.
// Invalid datasets are included so that the summary reports them as refused.
func (e *Engine) Make(ctx context.Context, target string, filter domain.DatasetFilter, opts MakeOptions) (scheduler.Summary, error) {
	filter.IncludeInvalid = true
	datasets, err := e.index.Datasets(ctx, filter)
	if err != nil {
		return scheduler.Summary{Target: target}, err
	}
	return e.scheduler.Make(ctx, target, datasets, opts)
}

// Close releases the store and index when they hold resources.
func (e *Engine) Close() error {
	var errs []error
	if c, ok := e.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	switch c := e.index.(type) {
	case io.Closer:
		errs = append(errs, c.Close())
	case interface{ Close() }:
		c.Close()
	}
	return errors.Join(errs...)
}
