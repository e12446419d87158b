package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// NewLoggingMiddleware creates a middleware that logs every write and
// deletion at debug level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.ArtifactStore) ports.ArtifactStore {
		return wrapStore(next, func(ds domain.Dataset, h ports.Handle) ports.Handle {
			return &loggingHandle{Handle: h, logger: logger.With("dataset", ds.ID)}
		})
	}
}

type loggingHandle struct {
	ports.Handle
	logger *slog.Logger
}

func (h *loggingHandle) Put(ctx context.Context, key string, value domain.Array) error {
	start := time.Now()
	err := h.Handle.Put(ctx, key, value)
	if err != nil {
		h.logger.Debug("Put failed", "key", key, "error", err)
		return err
	}
	h.logger.Debug("Put", "key", key, "shape", value.Shape, "duration", time.Since(start))
	return nil
}

func (h *loggingHandle) Delete(ctx context.Context, key string) error {
	err := h.Handle.Delete(ctx, key)
	h.logger.Debug("Delete", "key", key, "error", err)
	return err
}
