package scheduler

import (
	"time"

	"github.com/aretw0/telemetry/internal/chain"
	"github.com/aretw0/telemetry/pkg/domain"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Step     chain.Step
	Outcome  domain.Outcome
	Artifact domain.Artifact
	Duration time.Duration
	Err      error
}

// Item is one independent unit of a group: a target for a dataset.
type Item struct {
	Dataset domain.Dataset
	Target  string
	Options chain.Options
}

// ItemResult is the outcome of one item. Err is set when no chain could be
// built (invalid dataset, cancelled before start); Steps is then empty.
type ItemResult struct {
	Item  Item
	Steps []StepResult
	Err   error
}

// Summary tallies a batch. One dataset's results never affect another's.
type Summary struct {
	Batch    string
	Target   string
	Datasets int

	Succeeded int
	Reused    int
	Failed    int
	Busy      int
	Skipped   int

	// Refused counts datasets that produced no chain (invalid or cancelled).
	Refused int

	Items []ItemResult
}

// Add folds one item into the tally.
func (s *Summary) Add(r ItemResult) {
	s.Datasets++
	s.Items = append(s.Items, r)
	if r.Err != nil {
		s.Refused++
	}
	for _, st := range r.Steps {
		switch st.Outcome {
		case domain.OutcomeSucceeded:
			s.Succeeded++
		case domain.OutcomeReused:
			s.Reused++
		case domain.OutcomeFailed:
			s.Failed++
		case domain.OutcomeBusy:
			s.Busy++
		case domain.OutcomeSkipped:
			s.Skipped++
		}
	}
}

// Steps is the total number of steps tallied.
func (s Summary) Steps() int {
	return s.Succeeded + s.Reused + s.Failed + s.Busy + s.Skipped
}

// Clean reports whether nothing failed, was busy or was refused.
func (s Summary) Clean() bool {
	return s.Failed == 0 && s.Busy == 0 && s.Refused == 0
}

// Errors returns every step and item error, in item order.
func (s Summary) Errors() []error {
	var out []error
	for _, it := range s.Items {
		if it.Err != nil {
			out = append(out, it.Err)
		}
		for _, st := range it.Steps {
			if st.Err != nil && st.Outcome != domain.OutcomeSkipped {
				out = append(out, st.Err)
			}
		}
	}
	return out
}
