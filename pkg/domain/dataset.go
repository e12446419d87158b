package domain

import "time"

// Dataset is a unit of captured data. Its artifacts live in the keyed store
// addressed by Locator.
type Dataset struct {
	ID      string    `json:"id"`
	Locator string    `json:"locator"`
	Created time.Time `json:"created"`

	// Valid is false when the last reconcile could not read the storage.
	// Invalid datasets are excluded from chain building until revalidated.
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`

	// Samples is a cached sample count refreshed by reconcile.
	Samples int `json:"samples"`
}

// DatasetStatus is the mutable part of a Dataset written by reconcile.
type DatasetStatus struct {
	Valid   bool
	Error   string
	Samples int
}

// DatasetFilter selects datasets by creation time.
// Zero values mean "no bound".
type DatasetFilter struct {
	From           time.Time
	To             time.Time
	IncludeInvalid bool
}

// Match reports whether ds is selected by the filter.
func (f DatasetFilter) Match(ds Dataset) bool {
	if !f.IncludeInvalid && !ds.Valid {
		return false
	}
	if !f.From.IsZero() && ds.Created.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !ds.Created.Before(f.To) {
		return false
	}
	return true
}

// DayFilter returns a filter covering days whole days starting at date.
func DayFilter(date time.Time, days int) DatasetFilter {
	if days < 1 {
		days = 1
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return DatasetFilter{From: start, To: start.AddDate(0, 0, days)}
}

// Artifact records that the value for Key exists in the dataset's storage.
type Artifact struct {
	DatasetID string    `json:"dataset_id"`
	Key       string    `json:"key"`
	Created   time.Time `json:"created"`
}

// CreatedFromName parses a leading YYYY-MM-DD (optionally followed by
// THHMMSS or THH:MM:SS) from a dataset name, as produced by capture tools
// that name datasets after their start time.
func CreatedFromName(name string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T150405", "2006-01-02"} {
		if len(name) < len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, name[:len(layout)], time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
