package ports

import (
	"context"

	"github.com/aretw0/telemetry/pkg/domain"
)

// ArtifactStore opens the keyed storage of a dataset.
type ArtifactStore interface {
	// Open acquires a handle on the dataset's storage.
	// The caller MUST Close the handle.
	Open(ctx context.Context, ds domain.Dataset) (Handle, error)
}

// Handle is an open keyed store scoped to one dataset.
// Handles are not required to be safe for concurrent use.
type Handle interface {
	// Get returns the array under key, or domain.ErrKeyNotFound.
	Get(ctx context.Context, key string) (domain.Array, error)

	// Put writes (or overwrites) the array under key.
	Put(ctx context.Context, key string, value domain.Array) error

	// Has reports whether key is present.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key present, in unspecified order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the handle.
	Close() error
}

// Discoverer is implemented by stores that can enumerate the datasets they
// hold, so that an empty index can be rebuilt from storage.
type Discoverer interface {
	Discover(ctx context.Context) ([]domain.Dataset, error)
}
