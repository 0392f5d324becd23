package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for structural failures. Callers match with errors.Is.
var (
	// ErrNotFound indicates an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyTerminal indicates an operation on a job or mapping that
	// cannot accept it in its current state.
	ErrAlreadyTerminal = errors.New("already in a terminal state")
)

// ValidationError reports malformed input to an operation. Structural:
// surfaced immediately, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether any error in the chain is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ScanFailure indicates the scan adapter could not enumerate a source
// system's attributes. The source is marked degraded, not removed.
type ScanFailure struct {
	SourceSystemID string
	Err            error
}

func (e *ScanFailure) Error() string {
	return fmt.Sprintf("scan failed for source %s: %v", e.SourceSystemID, e.Err)
}

func (e *ScanFailure) Unwrap() error { return e.Err }

// JobExecutionError reports a step failure during job execution.
type JobExecutionError struct {
	JobID     string
	Step      string
	Transient bool
	Err       error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %s step %q: %v", e.JobID, e.Step, e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }

// FixApplicationError reports that a fix could not be applied after
// exhausting retries. The materialized data is guaranteed untouched.
type FixApplicationError struct {
	IssueID string
	Err     error
}

func (e *FixApplicationError) Error() string {
	return fmt.Sprintf("fix for issue %s: %v", e.IssueID, e.Err)
}

func (e *FixApplicationError) Unwrap() error { return e.Err }
