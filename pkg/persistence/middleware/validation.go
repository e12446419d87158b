package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// ErrProtectedKey is returned when a write targets a protected key.
var ErrProtectedKey = errors.New("key is protected")

// NewValidationMiddleware creates a middleware that refuses to write arrays
// whose shape does not match their data.
func NewValidationMiddleware() Middleware {
	return func(next ports.ArtifactStore) ports.ArtifactStore {
		return wrapStore(next, func(ds domain.Dataset, h ports.Handle) ports.Handle {
			return &validatingHandle{Handle: h, dataset: ds.ID}
		})
	}
}

type validatingHandle struct {
	ports.Handle
	dataset string
}

func (h *validatingHandle) Put(ctx context.Context, key string, value domain.Array) error {
	if err := value.Validate(); err != nil {
		return fmt.Errorf("refusing to write %s/%s: %w", h.dataset, key, err)
	}
	return h.Handle.Put(ctx, key, value)
}

// NewProtectMiddleware creates a middleware that refuses to overwrite or
// delete the given keys. Reads pass through.
func NewProtectMiddleware(keys ...string) Middleware {
	protected := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		protected[k] = struct{}{}
	}
	return func(next ports.ArtifactStore) ports.ArtifactStore {
		return wrapStore(next, func(ds domain.Dataset, h ports.Handle) ports.Handle {
			return &protectedHandle{Handle: h, dataset: ds.ID, keys: protected}
		})
	}
}

type protectedHandle struct {
	ports.Handle
	dataset string
	keys    map[string]struct{}
}

func (h *protectedHandle) Put(ctx context.Context, key string, value domain.Array) error {
	if _, ok := h.keys[key]; ok {
		return fmt.Errorf("%w: %s/%s", ErrProtectedKey, h.dataset, key)
	}
	return h.Handle.Put(ctx, key, value)
}

func (h *protectedHandle) Delete(ctx context.Context, key string) error {
	if _, ok := h.keys[key]; ok {
		return fmt.Errorf("%w: %s/%s", ErrProtectedKey, h.dataset, key)
	}
	return h.Handle.Delete(ctx, key)
}
