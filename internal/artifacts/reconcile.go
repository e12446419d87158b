package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// Report describes what one Reconcile changed.
type Report struct {
	Dataset string   `json:"dataset"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Samples int      `json:"samples"`
}

// Changed reports whether any row was inserted or deleted.
func (r Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Reconcile makes the dataset's artifact rows match the recognized keys
// present in its storage, then refreshes the cached sample count.
//
// If storage cannot be read, the dataset is marked invalid with the error
// stored, and a *domain.ConsistencyError is returned. A successful reconcile
// marks the dataset valid again.
func (a *Adapter) Reconcile(ctx context.Context, ds domain.Dataset) (Report, error) {
	report := Report{Dataset: ds.ID}

	var (
		present []string
		samples int
	)
	err := a.With(ctx, ds, func(h ports.Handle) error {
		keys, err := h.Keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to enumerate keys: %w", err)
		}
		present = keys
		samples, err = a.sampleCount(ctx, h, keys)
		return err
	})
	if err != nil {
		return report, a.invalidate(ctx, ds, err)
	}

	rows, err := a.Artifacts(ctx, ds.ID)
	if err != nil {
		return report, err
	}
	inStorage := make(map[string]bool, len(present))
	for _, k := range present {
		inStorage[k] = true
	}

	// 1. Recognized keys without a row.
	for _, k := range present {
		if _, ok := rows[k]; ok {
			continue
		}
		if !a.graph.Has(k) {
			continue
		}
		report.Added = append(report.Added, k)
	}
	// 2. Rows whose key is gone.
	for k := range rows {
		if !inStorage[k] {
			report.Removed = append(report.Removed, k)
		}
	}
	sort.Strings(report.Added)
	sort.Strings(report.Removed)

	if report.Changed() {
		if err := a.apply(ctx, ds.ID, report); err != nil {
			return report, err
		}
	}

	report.Samples = samples
	if err := a.index.SetDatasetStatus(ctx, ds.ID, domain.DatasetStatus{Valid: true, Samples: samples}); err != nil {
		return report, fmt.Errorf("failed to update status of dataset %s: %w", ds.ID, err)
	}

	a.logger.Debug("Reconciled dataset",
		"dataset", ds.ID,
		"added", len(report.Added),
		"removed", len(report.Removed),
		"samples", samples,
	)
	return report, nil
}

func (a *Adapter) apply(ctx context.Context, datasetID string, report Report) (err error) {
	tx, err := a.index.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	for _, k := range report.Added {
		err = tx.InsertArtifact(ctx, domain.Artifact{DatasetID: datasetID, Key: k, Created: now})
		// A concurrent writer may have committed the same row.
		if errors.Is(err, domain.ErrArtifactExists) {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert artifact %q: %w", k, err)
		}
	}
	for _, k := range report.Removed {
		if err = tx.DeleteArtifact(ctx, datasetID, k); err != nil {
			return fmt.Errorf("failed to delete artifact %q: %w", k, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reconcile of dataset %s: %w", datasetID, err)
	}
	return nil
}

// sampleCount reads the first source kind present, in registration order,
// and returns its last-axis length. Zero when no source kind is stored.
func (a *Adapter) sampleCount(ctx context.Context, h ports.Handle, keys []string) (int, error) {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	for _, k := range a.graph.Kinds() {
		if k.Generatable() || !present[k.Key] {
			continue
		}
		arr, err := h.Get(ctx, k.Key)
		if err != nil {
			return 0, fmt.Errorf("failed to read %q: %w", k.Key, err)
		}
		if err := arr.Validate(); err != nil {
			return 0, fmt.Errorf("corrupt array under %q: %w", k.Key, err)
		}
		return arr.Samples(), nil
	}
	return 0, nil
}

func (a *Adapter) invalidate(ctx context.Context, ds domain.Dataset, cause error) error {
	a.logger.Warn("Dataset storage unreadable, marking invalid", "dataset", ds.ID, "err", cause)
	status := domain.DatasetStatus{Valid: false, Error: cause.Error()}
	if err := a.index.SetDatasetStatus(ctx, ds.ID, status); err != nil {
		return fmt.Errorf("failed to mark dataset %s invalid: %w (cause: %v)", ds.ID, err, cause)
	}
	return &domain.ConsistencyError{Dataset: ds.ID, Cause: cause}
}
