package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/telemetry"
	"github.com/aretw0/telemetry/internal/config"
	"github.com/aretw0/telemetry/pkg/adapters/file"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/adapters/postgres"
	"github.com/aretw0/telemetry/pkg/adapters/process"
	"github.com/aretw0/telemetry/pkg/adapters/redis"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/generators"
	"github.com/aretw0/telemetry/pkg/observability"
	"github.com/aretw0/telemetry/pkg/persistence/middleware"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
)

// newEngine wires the engine described by cfg. With the memory index the
// datasets are rediscovered from storage on every start.
func newEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*telemetry.Engine, error) {
	// 1. Kinds and generators
	table, err := registry.LoadTable(cfg.Kinds)
	if err != nil {
		return nil, err
	}
	graph, err := table.Build()
	if err != nil {
		return nil, err
	}

	// External commands join the reference generators.
	commands, err := process.LoadCommands(cfg.Commands)
	if err != nil {
		return nil, err
	}
	gens := registry.NewGenerators()
	generators.Register(gens)
	process.NewRunner(process.WithRegistry(commands), process.WithBaseDir(filepath.Dir(cfg.Commands))).RegisterWith(gens)

	opts := []telemetry.Option{
		telemetry.WithGenerators(gens),
		telemetry.WithLogger(logger),
		telemetry.WithWorkers(cfg.Workers),
		telemetry.WithLockTimeout(cfg.LockTimeout),
		telemetry.WithLockTTL(cfg.LockTTL),
		telemetry.WithLifecycleHooks(observability.Merge(append([]domain.LifecycleHooks{observability.LoggingHooks(logger)}, hooks...)...)),
	}

	// Resources opened so far, released if wiring fails further down.
	var cleanup []func()
	release := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	// 2. Storage
	var store ports.ArtifactStore
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverFile:
		store = file.New(cfg.Store.Path)
	case config.DriverRedis:
		rs := redis.New(cfg.Store.RedisAddr, "", cfg.Store.RedisDB, redis.WithPrefix(cfg.Store.Prefix))
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		store = rs
		cleanup = append(cleanup, func() { _ = rs.Close() })
		opts = append(opts, telemetry.WithLocker(redis.NewLocker(rs.Client(), cfg.Store.Prefix)))
	}

	// Source kinds are ingested externally and never written by the engine.
	var sources []string
	for _, k := range graph.Kinds() {
		if !k.Generatable() {
			sources = append(sources, k.Key)
		}
	}
	opts = append(opts, telemetry.WithStore(middleware.Chain(store,
		middleware.NewProtectMiddleware(sources...),
		middleware.NewValidationMiddleware(),
		middleware.NewLoggingMiddleware(logger),
	)))

	// 3. Index
	switch cfg.Index.Driver {
	case config.DriverPostgres:
		index, err := postgres.New(ctx, cfg.Index.DSN)
		if err != nil {
			release()
			return nil, err
		}
		cleanup = append(cleanup, index.Close)
		opts = append(opts, telemetry.WithIndex(index))
	default:
		opts = append(opts, telemetry.WithIndex(memory.NewIndex()))
	}

	eng, err := telemetry.New(ctx, graph, opts...)
	if err != nil {
		release()
		return nil, err
	}

	if cfg.Index.Driver == config.DriverMemory {
		reports, err := eng.Discover(ctx)
		if err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("failed to discover datasets: %w", err)
		}
		logger.Debug("Datasets discovered", "count", len(reports))
	}
	return eng, nil
}
