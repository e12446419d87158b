// Package dto holds the wire shapes shared by the CLI and the HTTP server.
package dto

import (
	"fmt"
	"time"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/scheduler"
)

// DateLayout is the day format accepted by --date and the HTTP API.
const DateLayout = "2006-01-02"

// Selection picks datasets by creation day.
type Selection struct {
	Date           string `json:"date,omitempty"`
	Days           int    `json:"days,omitempty"`
	IncludeInvalid bool   `json:"include_invalid,omitempty"`
}

// Filter turns the selection into a dataset filter. An empty Date selects
// every dataset.
func (s Selection) Filter() (domain.DatasetFilter, error) {
	if s.Date == "" {
		return domain.DatasetFilter{IncludeInvalid: s.IncludeInvalid}, nil
	}
	day, err := time.ParseInLocation(DateLayout, s.Date, time.UTC)
	if err != nil {
		return domain.DatasetFilter{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s.Date)
	}
	if s.Days < 0 {
		return domain.DatasetFilter{}, fmt.Errorf("days must not be negative, got %d", s.Days)
	}
	filter := domain.DayFilter(day, s.Days)
	filter.IncludeInvalid = s.IncludeInvalid
	return filter, nil
}

// MakeRequest is the body of POST /make.
type MakeRequest struct {
	Selection
	Target    string `json:"target"`
	Force     bool   `json:"force,omitempty"`
	Recursive *bool  `json:"recursive,omitempty"`
}

// Step is one reported generation step.
type Step struct {
	Dataset    string         `json:"dataset"`
	Kind       string         `json:"kind"`
	Outcome    domain.Outcome `json:"outcome"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Refusal is a dataset for which no chain was built.
type Refusal struct {
	Dataset string `json:"dataset"`
	Error   string `json:"error"`
}

// Summary is the reported outcome of a batch.
type Summary struct {
	Batch     string    `json:"batch"`
	Target    string    `json:"target"`
	Datasets  int       `json:"datasets"`
	Succeeded int       `json:"succeeded"`
	Reused    int       `json:"reused"`
	Failed    int       `json:"failed"`
	Busy      int       `json:"busy"`
	Skipped   int       `json:"skipped"`
	Refused   []Refusal `json:"refused,omitempty"`
	Steps     []Step    `json:"steps"`
}

// FromSummary flattens a scheduler summary.
func FromSummary(s scheduler.Summary) Summary {
	out := Summary{
		Batch:     s.Batch,
		Target:    s.Target,
		Datasets:  s.Datasets,
		Succeeded: s.Succeeded,
		Reused:    s.Reused,
		Failed:    s.Failed,
		Busy:      s.Busy,
		Skipped:   s.Skipped,
		Steps:     []Step{},
	}
	for _, item := range s.Items {
		if item.Err != nil {
			out.Refused = append(out.Refused, Refusal{Dataset: item.Item.Dataset.ID, Error: item.Err.Error()})
		}
		for _, st := range item.Steps {
			step := Step{
				Dataset:    st.Step.Dataset.ID,
				Kind:       st.Step.Kind,
				Outcome:    st.Outcome,
				DurationMS: st.Duration.Milliseconds(),
			}
			if st.Err != nil {
				step.Error = st.Err.Error()
			}
			out.Steps = append(out.Steps, step)
		}
	}
	return out
}
