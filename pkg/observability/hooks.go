package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/telemetry/pkg/domain"
)

// LoggingHooks logs step completions. Failures log at Warn, the rest at Debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			attrs := []any{
				"dataset", e.Dataset,
				"kind", e.Kind,
				"outcome", e.Outcome,
				"duration", e.Duration,
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			switch e.Outcome {
			case domain.OutcomeFailed, domain.OutcomeBusy:
				logger.Warn("step finished", attrs...)
			default:
				logger.Debug("step finished", attrs...)
			}
		},
	}
}

// Merge fans each event out to every hook set, in order.
func Merge(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range hooks {
				if h.OnStepStart != nil {
					h.OnStepStart(ctx, e)
				}
			}
		},
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range hooks {
				if h.OnStepFinish != nil {
					h.OnStepFinish(ctx, e)
				}
			}
		},
	}
}
