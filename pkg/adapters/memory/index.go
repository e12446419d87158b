package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

type artifactKey struct {
	dataset string
	key     string
}

// Index implements ports.Index in memory.
// Transactions buffer their changes and apply them atomically on Commit.
type Index struct {
	mu sync.RWMutex

	kinds     map[string]domain.Kind
	kindOrder []string
	edges     []domain.Edge

	datasets  map[string]domain.Dataset
	artifacts map[artifactKey]domain.Artifact
}

var _ ports.Index = (*Index)(nil)

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{
		kinds:     make(map[string]domain.Kind),
		datasets:  make(map[string]domain.Dataset),
		artifacts: make(map[artifactKey]domain.Artifact),
	}
}

func (x *Index) RequireKind(ctx context.Context, kind domain.Kind) (domain.Kind, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if existing, ok := x.kinds[kind.Key]; ok {
		return existing, nil
	}
	x.kinds[kind.Key] = kind
	x.kindOrder = append(x.kindOrder, kind.Key)
	return kind, nil
}

func (x *Index) AddPrerequisite(ctx context.Context, edge domain.Edge) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range x.edges {
		if e == edge {
			return nil
		}
	}
	x.edges = append(x.edges, edge)
	return nil
}

func (x *Index) Kinds(ctx context.Context) ([]domain.Kind, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.Kind, 0, len(x.kindOrder))
	for _, k := range x.kindOrder {
		out = append(out, x.kinds[k])
	}
	return out, nil
}

func (x *Index) Prerequisites(ctx context.Context) ([]domain.Edge, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]domain.Edge(nil), x.edges...), nil
}

func (x *Index) PutDataset(ctx context.Context, ds domain.Dataset) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if existing, ok := x.datasets[ds.ID]; ok {
		existing.Locator = ds.Locator
		existing.Created = ds.Created
		x.datasets[ds.ID] = existing
		return nil
	}
	x.datasets[ds.ID] = ds
	return nil
}

func (x *Index) Dataset(ctx context.Context, id string) (domain.Dataset, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ds, ok := x.datasets[id]
	if !ok {
		return domain.Dataset{}, domain.ErrDatasetNotFound
	}
	return ds, nil
}

func (x *Index) Datasets(ctx context.Context, filter domain.DatasetFilter) ([]domain.Dataset, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []domain.Dataset
	for _, ds := range x.datasets {
		if filter.Match(ds) {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (x *Index) SetDatasetStatus(ctx context.Context, id string, status domain.DatasetStatus) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	ds, ok := x.datasets[id]
	if !ok {
		return domain.ErrDatasetNotFound
	}
	ds.Valid = status.Valid
	ds.Error = status.Error
	if status.Valid {
		ds.Samples = status.Samples
	}
	x.datasets[id] = ds
	return nil
}

func (x *Index) DeleteDataset(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.datasets[id]; !ok {
		return domain.ErrDatasetNotFound
	}
	delete(x.datasets, id)
	for k := range x.artifacts {
		if k.dataset == id {
			delete(x.artifacts, k)
		}
	}
	return nil
}

func (x *Index) Artifact(ctx context.Context, datasetID, key string) (domain.Artifact, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	a, ok := x.artifacts[artifactKey{datasetID, key}]
	if !ok {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	return a, nil
}

func (x *Index) Artifacts(ctx context.Context, datasetID string) ([]domain.Artifact, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []domain.Artifact
	for k, a := range x.artifacts {
		if k.dataset == datasetID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (x *Index) Begin(ctx context.Context) (ports.IndexTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{index: x}, nil
}

type op struct {
	insert   bool
	artifact domain.Artifact
}

type tx struct {
	index *Index
	ops   []op
	done  bool
}

var errTxDone = errors.New("transaction already finished")

// pending reports whether (dataset, key) exists after applying the buffered ops.
func (t *tx) pending(k artifactKey) bool {
	_, exists := t.index.artifacts[k]
	for _, o := range t.ops {
		if (artifactKey{o.artifact.DatasetID, o.artifact.Key}) == k {
			exists = o.insert
		}
	}
	return exists
}

func (t *tx) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	if t.done {
		return errTxDone
	}
	t.index.mu.RLock()
	exists := t.pending(artifactKey{a.DatasetID, a.Key})
	t.index.mu.RUnlock()
	if exists {
		return domain.ErrArtifactExists
	}
	t.ops = append(t.ops, op{insert: true, artifact: a})
	return nil
}

func (t *tx) DeleteArtifact(ctx context.Context, datasetID, key string) error {
	if t.done {
		return errTxDone
	}
	t.ops = append(t.ops, op{artifact: domain.Artifact{DatasetID: datasetID, Key: key}})
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	x := t.index
	x.mu.Lock()
	defer x.mu.Unlock()

	// Re-validate against rows committed since the inserts were buffered.
	staged := make(map[artifactKey]*domain.Artifact)
	for _, o := range t.ops {
		k := artifactKey{o.artifact.DatasetID, o.artifact.Key}
		if o.insert {
			exists := false
			if s, ok := staged[k]; ok {
				exists = s != nil
			} else {
				_, exists = x.artifacts[k]
			}
			if exists {
				t.done = true
				return domain.ErrArtifactExists
			}
			a := o.artifact
			staged[k] = &a
		} else {
			staged[k] = nil
		}
	}
	for k, a := range staged {
		if a == nil {
			delete(x.artifacts, k)
		} else {
			x.artifacts[k] = *a
		}
	}
	t.done = true
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}
