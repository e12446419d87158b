// Package scheduler fans generation chains out over datasets.
//
// Chains of different datasets run in parallel, bounded by the worker count.
// Steps of one chain run in order; each re-reads its prerequisites from
// storage, so nothing but the dataset identity passes between steps. Every
// step runs under the dataset's lock with a bounded wait.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/aretw0/telemetry/internal/chain"
	"github.com/aretw0/telemetry/internal/generation"
	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/locking"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultLockTimeout bounds the wait for a dataset lock.
const DefaultLockTimeout = 10 * time.Second

// Scheduler runs chains and groups of chains.
type Scheduler struct {
	executor    *generation.Executor
	builder     *chain.Builder
	locks       *locking.Manager
	workers     int
	lockTimeout time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds the number of datasets processed at once.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLockTimeout bounds the wait for a dataset lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLocks shares a lock manager, e.g. one backed by a distributed locker.
func WithLocks(m *locking.Manager) Option {
	return func(s *Scheduler) {
		s.locks = m
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.hooks = h
	}
}

// WithLogger configures a logger for the Scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler.
func New(executor *generation.Executor, builder *chain.Builder, opts ...Option) *Scheduler {
	s := &Scheduler{
		executor:    executor,
		builder:     builder,
		workers:     runtime.GOMAXPROCS(0),
		lockTimeout: DefaultLockTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = locking.NewManager(locking.WithLogger(s.logger))
	}
	return s
}

// SubmitChain runs steps strictly in order. After a step that does not
// complete, the remaining steps are reported as skipped.
func (s *Scheduler) SubmitChain(ctx context.Context, steps []chain.Step) *Future[[]StepResult] {
	return submit(ctx, func(ctx context.Context) ([]StepResult, error) {
		results := s.runChain(ctx, steps)
		return results, ctx.Err()
	})
}

// SubmitGroup runs independent items in parallel, at most Workers at a time.
// An item's failure never stops the others; cancellation stops items not
// yet started.
func (s *Scheduler) SubmitGroup(ctx context.Context, items []Item) *Future[[]ItemResult] {
	return submit(ctx, func(ctx context.Context) ([]ItemResult, error) {
		results := s.runGroup(ctx, items)
		return results, ctx.Err()
	})
}

// Make materializes target for every dataset. The graph is resolved once up
// front: a structural error fails the whole batch before anything runs.
// Otherwise the summary is always returned; err is non-nil only when the
// batch was cancelled.
func (s *Scheduler) Make(ctx context.Context, target string, datasets []domain.Dataset, opts chain.Options) (Summary, error) {
	summary := Summary{Batch: uuid.NewString(), Target: target}
	if _, err := s.builder.Resolver().TransitiveClosureSorted(target); err != nil {
		return summary, err
	}

	items := make([]Item, len(datasets))
	for i, ds := range datasets {
		items[i] = Item{Dataset: ds, Target: target, Options: opts}
	}

	s.logger.Info("Batch started", "batch", summary.Batch, "target", target, "datasets", len(datasets))
	results, err := s.SubmitGroup(ctx, items).Wait()
	for _, r := range results {
		summary.Add(r)
	}
	s.logger.Info("Batch finished",
		"batch", summary.Batch,
		"succeeded", summary.Succeeded,
		"reused", summary.Reused,
		"failed", summary.Failed,
		"busy", summary.Busy,
		"skipped", summary.Skipped,
		"refused", summary.Refused,
	)
	return summary, err
}

func (s *Scheduler) runGroup(ctx context.Context, items []Item) []ItemResult {
	results := make([]ItemResult, len(items))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, it := range items {
		i, it := i, it
		results[i].Item = it
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i] = s.runItem(ctx, it)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) runItem(ctx context.Context, it Item) ItemResult {
	res := ItemResult{Item: it}
	steps, err := s.builder.BuildWith(ctx, it.Dataset, it.Target, it.Options)
	if err != nil {
		s.logger.Warn("Dataset refused", "dataset", it.Dataset.ID, "err", err)
		res.Err = err
		return res
	}
	res.Steps = s.runChain(ctx, steps)
	return res
}

func (s *Scheduler) runChain(ctx context.Context, steps []chain.Step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	var blocked error
	for _, step := range steps {
		if blocked == nil {
			blocked = ctx.Err()
		}
		if blocked != nil {
			r := StepResult{Step: step, Outcome: domain.OutcomeSkipped, Err: blocked}
			s.finish(ctx, &r)
			results = append(results, r)
			continue
		}
		r := s.runStep(ctx, step)
		results = append(results, r)
		if r.Outcome != domain.OutcomeSucceeded && r.Outcome != domain.OutcomeReused {
			blocked = fmt.Errorf("previous step %q did not complete: %s", step.Kind, r.Outcome)
		}
	}
	return results
}

func (s *Scheduler) runStep(ctx context.Context, step chain.Step) StepResult {
	start := time.Now()
	if s.hooks.OnStepStart != nil {
		s.hooks.OnStepStart(ctx, &domain.StepEvent{
			Timestamp: start,
			Dataset:   step.Dataset.ID,
			Kind:      step.Kind,
			Force:     step.Force,
		})
	}

	r := StepResult{Step: step}
	err := s.locks.TryWithLock(ctx, step.Dataset.ID, s.lockTimeout, func(ctx context.Context) error {
		m, err := s.executor.Materialize(ctx, step.Dataset, step.Kind, step.Force)
		if err != nil {
			return err
		}
		r.Artifact = m.Artifact
		r.Outcome = domain.OutcomeSucceeded
		if m.Reused {
			r.Outcome = domain.OutcomeReused
		}
		return nil
	})
	r.Duration = time.Since(start)
	r.Err = err

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLockBusy):
		r.Outcome = domain.OutcomeBusy
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.Outcome = domain.OutcomeSkipped
	default:
		r.Outcome = domain.OutcomeFailed
	}

	s.finish(ctx, &r)
	return r
}

func (s *Scheduler) finish(ctx context.Context, r *StepResult) {
	if s.hooks.OnStepFinish == nil {
		return
	}
	s.hooks.OnStepFinish(ctx, &domain.StepEvent{
		Timestamp: time.Now(),
		Dataset:   r.Step.Dataset.ID,
		Kind:      r.Step.Kind,
		Force:     r.Step.Force,
		Outcome:   r.Outcome,
		Duration:  r.Duration,
		Err:       r.Err,
	})
}
