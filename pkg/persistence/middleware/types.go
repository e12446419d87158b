package middleware

import (
	"context"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// Middleware allows wrapping an ArtifactStore to add behavior.
type Middleware func(ports.ArtifactStore) ports.ArtifactStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.ArtifactStore, mws ...Middleware) ports.ArtifactStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// handleFunc wraps every handle the next store opens.
type handleFunc func(ds domain.Dataset, h ports.Handle) ports.Handle

// store is the shared decorator: it wraps opened handles and keeps the
// next store's enumeration capability visible.
type store struct {
	next ports.ArtifactStore
	wrap handleFunc
}

func wrapStore(next ports.ArtifactStore, wrap handleFunc) ports.ArtifactStore {
	return &store{next: next, wrap: wrap}
}

func (s *store) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	h, err := s.next.Open(ctx, ds)
	if err != nil {
		return nil, err
	}
	return s.wrap(ds, h), nil
}

// Discover delegates to the next store. Stores that cannot enumerate yield
// nothing.
func (s *store) Discover(ctx context.Context) ([]domain.Dataset, error) {
	if d, ok := s.next.(ports.Discoverer); ok {
		return d.Discover(ctx)
	}
	return nil, nil
}

// Close closes the next store when it holds resources.
func (s *store) Close() error {
	switch c := s.next.(type) {
	case interface{ Close() error }:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}
