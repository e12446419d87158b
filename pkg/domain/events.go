package domain

import (
	"context"
	"time"
)

// Outcome is the result category of one generation step.
type Outcome string

const (
	// OutcomeSucceeded: the artifact was computed and committed.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeReused: the artifact already existed and force was not set.
	OutcomeReused Outcome = "reused"
	// OutcomeFailed: MissingPrerequisite or GenerationFailed.
	OutcomeFailed Outcome = "failed"
	// OutcomeBusy: the dataset lock was not acquired in time. Retryable.
	OutcomeBusy Outcome = "busy"
	// OutcomeSkipped: not run because an earlier step of the chain did not
	// complete, the dataset is invalid, or the batch was cancelled.
	OutcomeSkipped Outcome = "skipped"
)

// StepEvent describes one generation step for lifecycle hooks.
type StepEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Dataset   string        `json:"dataset"`
	Kind      string        `json:"kind"`
	Force     bool          `json:"force,omitempty"`
	Outcome   Outcome       `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for scheduler observability.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepFinish func(context.Context, *StepEvent)
}
