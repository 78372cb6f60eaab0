// Package apperr defines the error taxonomy shared across sitewatch's
// stages: pipeline code classifies failures into one of these sentinels so
// the orchestrator can decide whether a stage error is fatal or recorded
// and skipped.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig indicates a missing or malformed required environment input.
	// Fatal at process startup.
	ErrConfig = errors.New("configuration error")

	// ErrAuth indicates the credential row is missing or a refresh failed.
	// Fatal only to the stage that needed the token.
	ErrAuth = errors.New("authentication error")

	// ErrRemote indicates a non-2xx response or network failure from an
	// external API. Non-fatal at the stage level.
	ErrRemote = errors.New("remote error")

	// ErrData indicates a malformed external payload (bad sitemap XML,
	// missing audit block). Treated as an empty result.
	ErrData = errors.New("data error")

	// ErrBudget indicates a time or tool-call budget was exhausted during
	// the agent loop. Converted to a synthetic skip.
	ErrBudget = errors.New("budget exhausted")

	// ErrReviewConflict indicates an attempt to review a decision queue
	// item that is not in pending status.
	ErrReviewConflict = errors.New("review conflict")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// StageError wraps an error with the pipeline stage that produced it, so
// the orchestrator can record a readable per-step error string without
// losing the underlying sentinel for errors.Is/As checks upstream.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage name that produced it.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ValidationError reports a single invalid field on an inbound request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Msg)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
