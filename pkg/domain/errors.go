package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKindNotFound is returned when an artifact key is not registered.
	ErrKindNotFound = errors.New("kind not found")

	// ErrDatasetNotFound is returned when a dataset ID cannot be found in the index.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrArtifactNotFound is returned when no artifact row exists for (dataset, key).
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactExists is returned when inserting a second row for (dataset, key).
	ErrArtifactExists = errors.New("artifact already exists")

	// ErrKeyNotFound is returned by store handles for absent keys.
	ErrKeyNotFound = errors.New("key not found in storage")

	// ErrDegenerateOutput is returned when a generator emits an unusable array.
	ErrDegenerateOutput = errors.New("degenerate generator output")

	// ErrNotGeneratable is returned when generation is requested for a source kind.
	ErrNotGeneratable = errors.New("kind is not generatable")

	// ErrLockBusy is returned when a dataset lock is not acquired within its timeout.
	ErrLockBusy = errors.New("dataset lock busy")
)

// StructuralError reports a defect of the kind graph itself: a cycle, or an
// edge touching an unknown kind. It is fatal and never retryable.
type StructuralError struct {
	Kind       string
	Unresolved []string // sorted; set when resolution could not peel these keys
	Reason     string
}

func (e *StructuralError) Error() string {
	if len(e.Unresolved) > 0 {
		return fmt.Sprintf("structural error resolving %q: cyclic or missing dependency among {%s}",
			e.Kind, strings.Join(e.Unresolved, ", "))
	}
	return fmt.Sprintf("structural error at %q: %s", e.Kind, e.Reason)
}

// MissingPrerequisiteError reports that a step's direct prerequisites are not
// materialized. No computation was attempted.
type MissingPrerequisiteError struct {
	Dataset string
	Kind    string
	Missing []string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("dataset %s: cannot generate %q, missing prerequisites [%s]",
		e.Dataset, e.Kind, strings.Join(e.Missing, ", "))
}

// GenerationFailedError wraps any failure of the compute or persistence phase
// of a step. Nothing was committed.
type GenerationFailedError struct {
	Dataset string
	Kind    string
	Cause   error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("dataset %s: generating %q failed: %v", e.Dataset, e.Kind, e.Cause)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Cause
}

// LockBusyError reports a timed-out dataset lock. It matches ErrLockBusy.
type LockBusyError struct {
	Dataset string
	Cause   error
}

func (e *LockBusyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dataset %s: %v: %v", e.Dataset, ErrLockBusy, e.Cause)
	}
	return fmt.Sprintf("dataset %s: %v", e.Dataset, ErrLockBusy)
}

func (e *LockBusyError) Is(target error) bool {
	return target == ErrLockBusy
}

func (e *LockBusyError) Unwrap() error {
	return e.Cause
}

// ConsistencyError reports storage that reconcile cannot make sense of.
// The dataset is marked invalid until a later reconcile succeeds.
type ConsistencyError struct {
	Dataset string
	Cause   error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("dataset %s is inconsistent: %v", e.Dataset, e.Cause)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Cause
}

// IsStructural reports whether err is (or wraps) a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
