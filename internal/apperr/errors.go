package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidTimeFormat is returned when a clock value is not HH:MM.
	ErrInvalidTimeFormat = errors.New("invalid time format, use HH:MM")
	// ErrInvalidDateFormat is returned when a date value is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
	// ErrTimeOrder is returned when a time-out does not follow its time-in.
	ErrTimeOrder = errors.New("time out must be after time in")
	// ErrValidation marks field level input problems.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record changed since it was read.
	ErrConflict = errors.New("record was modified by someone else")
	// ErrNoRemainingClasses blocks sign-in for students without a balance.
	ErrNoRemainingClasses = errors.New("student has no remaining classes")
	// ErrPermissionDenied is returned when the store or identity layer refuses an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthorized is returned for bad credentials or tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDataAccess wraps failures of the backing store.
	ErrDataAccess = errors.New("data access failure")
)

// ValidationError collects per-field messages.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a message for field.
func (v *ValidationError) Add(field, msg string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = msg
}

// OrNil returns v as an error only when it holds messages.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.FieldErrors) == 0 {
		return nil
	}
	return v
}
