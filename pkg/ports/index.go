package ports

import (
	"context"

	"github.com/aretw0/telemetry/pkg/domain"
)

// Index is the relational index: kinds, prerequisite edges, datasets and the
// Artifact rows recording "this key is materialized for this dataset".
type Index interface {
	// RequireKind inserts the kind unless a row with the same key exists and
	// returns the persisted row. Safe under concurrent callers.
	RequireKind(ctx context.Context, kind domain.Kind) (domain.Kind, error)

	// AddPrerequisite inserts the edge unless it exists.
	AddPrerequisite(ctx context.Context, edge domain.Edge) error

	// Kinds lists persisted kinds in insertion order.
	Kinds(ctx context.Context) ([]domain.Kind, error)

	// Prerequisites lists persisted edges in insertion order.
	Prerequisites(ctx context.Context) ([]domain.Edge, error)

	// PutDataset registers a dataset, or updates its locator and creation time.
	PutDataset(ctx context.Context, ds domain.Dataset) error

	// Dataset returns the dataset or domain.ErrDatasetNotFound.
	Dataset(ctx context.Context, id string) (domain.Dataset, error)

	// Datasets lists datasets matching filter, ordered by creation time then ID.
	Datasets(ctx context.Context, filter domain.DatasetFilter) ([]domain.Dataset, error)

	// SetDatasetStatus updates validity, stored error and cached sample count.
	SetDatasetStatus(ctx context.Context, id string, status domain.DatasetStatus) error

	// DeleteDataset removes the dataset and its artifact rows, or returns
	// domain.ErrDatasetNotFound. Storage is left untouched.
	DeleteDataset(ctx context.Context, id string) error

	// Artifact returns the row for (datasetID, key) or domain.ErrArtifactNotFound.
	Artifact(ctx context.Context, datasetID, key string) (domain.Artifact, error)

	// Artifacts lists every row of the dataset.
	Artifacts(ctx context.Context, datasetID string) ([]domain.Artifact, error)

	// Begin opens a transaction for artifact row changes.
	Begin(ctx context.Context) (IndexTx, error)
}

// IndexTx is a transaction over Artifact rows.
// Exactly one of Commit or Rollback must be called; Rollback after Commit is a no-op.
type IndexTx interface {
	// InsertArtifact inserts a row; returns domain.ErrArtifactExists on conflict.
	InsertArtifact(ctx context.Context, a domain.Artifact) error

	// DeleteArtifact removes the row if present.
	DeleteArtifact(ctx context.Context, datasetID, key string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
