package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/flightdesk/reservation/internal/database"
	"go.temporal.io/sdk/temporal"
)

var (
	// ErrNotFound covers entities that are absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrSeatUnavailable means the seat was taken by the time the reservation committed.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrConflict reports a duplicate unique key on reference data.
	ErrConflict = errors.New("already exists")
)

// ValidationError lists rejected input fields and why.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// merge folds other into e, returning nil when both are empty.
func (e *ValidationError) merge(other *ValidationError) *ValidationError {
	if other == nil {
		return e
	}
	if e == nil {
		return other
	}
	for k, v := range other.Fields {
		e.Fields[k] = v
	}
	return e
}

// Application error types carried across the Temporal boundary.
const (
	appErrValidation = "ValidationError"
	appErrConflict   = "Conflict"
	appErrNotFound   = "NotFound"
)

// ToApplicationError marks input and uniqueness failures as non-retryable so a
// workflow stops on them instead of retrying the activity.
func ToApplicationError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return temporal.NewNonRetryableApplicationError(err.Error(), appErrValidation, err, verr.Fields)
	case errors.Is(err, ErrConflict), errors.Is(err, database.ErrConflict):
		return temporal.NewNonRetryableApplicationError(err.Error(), appErrConflict, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, database.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), appErrNotFound, err)
	}
	return err
}

// FromApplicationError restores the service error taxonomy from a workflow failure.
func FromApplicationError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Type() {
	case appErrValidation:
		fields := map[string]string{}
		if appErr.HasDetails() {
			if derr := appErr.Details(&fields); derr != nil {
				fields = map[string]string{"request": appErr.Error()}
			}
		}
		return &ValidationError{Fields: fields}
	case appErrConflict:
		return fmt.Errorf("%s: %w", appErr.Error(), ErrConflict)
	case appErrNotFound:
		return fmt.Errorf("%s: %w", appErr.Error(), ErrNotFound)
	}
	return err
}
