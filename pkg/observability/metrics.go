package observability

import (
	"context"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the step collectors.
type Metrics struct {
	Steps    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telemetry",
				Name:      "steps_total",
				Help:      "Generation steps by outcome.",
			},
			[]string{"outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "telemetry",
				Name:      "step_duration_seconds",
				Help:      "Duration of generation steps that ran.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Steps, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records every step event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(string(e.Outcome)).Inc()
			if e.Outcome == domain.OutcomeSucceeded || e.Outcome == domain.OutcomeFailed {
				m.Duration.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
			}
		},
	}
}
