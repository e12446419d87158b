// Package artifacts joins a dataset's keyed storage with the relational index
// of materialized artifacts.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
)

// Adapter owns the storage and index of every dataset.
type Adapter struct {
	store  ports.ArtifactStore
	index  ports.Index
	graph  *registry.Graph
	logger *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger configures a logger for the Adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an Adapter. The graph decides which storage keys are recognized.
func New(store ports.ArtifactStore, index ports.Index, graph *registry.Graph, opts ...Option) *Adapter {
	a := &Adapter{
		store:  store,
		index:  index,
		graph:  graph,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Index returns the relational index.
func (a *Adapter) Index() ports.Index {
	return a.index
}

// Graph returns the kind graph.
func (a *Adapter) Graph() *registry.Graph {
	return a.graph
}

// Open acquires a handle on the dataset's storage. The caller MUST Close it;
// prefer With, which cannot leak the handle.
func (a *Adapter) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	h, err := a.store.Open(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage of dataset %s: %w", ds.ID, err)
	}
	return h, nil
}

// With runs fn with an open handle and releases it on every exit path,
// including a panic in fn. A close error is reported only if fn succeeded.
func (a *Adapter) With(ctx context.Context, ds domain.Dataset, fn func(ports.Handle) error) (err error) {
	h, err := a.Open(ctx, ds)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("failed to close storage of dataset %s: %w", ds.ID, cerr)
				return
			}
			a.logger.Warn("Failed to close storage handle", "dataset", ds.ID, "err", cerr)
		}
	}()
	return fn(h)
}

// Artifacts returns a snapshot of the dataset's artifact rows keyed by
// artifact key. Rows committed after the call are not reflected.
func (a *Adapter) Artifacts(ctx context.Context, datasetID string) (map[string]domain.Artifact, error) {
	rows, err := a.index.Artifacts(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts of dataset %s: %w", datasetID, err)
	}
	out := make(map[string]domain.Artifact, len(rows))
	for _, r := range rows {
		out[r.Key] = r
	}
	return out, nil
}

// Materialized reports whether the index holds a row for (datasetID, key).
func (a *Adapter) Materialized(ctx context.Context, datasetID, key string) (bool, error) {
	_, err := a.index.Artifact(ctx, datasetID, key)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up artifact %q of dataset %s: %w", key, datasetID, err)
	}
	return true, nil
}
