// Package errors provides domain-specific error types and sentinel errors
// shared by the scanner, the duration resolver and the progress store.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrCourseNotFound indicates the course root is missing or unreadable.
	// It is fatal for a scan and is never retried.
	ErrCourseNotFound = errors.New("course not found")

	// ErrPartialScan marks a sub-folder that could not be read. The scan
	// continues and the failure is recorded on the parent chapter.
	ErrPartialScan = errors.New("partial scan")

	// ErrDurationResolutionFailed indicates the duration oracle failed or
	// timed out for a single video.
	ErrDurationResolutionFailed = errors.New("duration resolution failed")

	// ErrCacheInvalid indicates a duration cache whose fingerprint does not
	// match the current course structure.
	ErrCacheInvalid = errors.New("duration cache invalid")

	// ErrMalformedOrderToken indicates a name that looks numeric but cannot
	// be parsed. It never leaves the ordering package.
	ErrMalformedOrderToken = errors.New("malformed order token")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates the caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed indicates use of a component after Close.
	ErrClosed = errors.New("component closed")

	// ErrRateLimited indicates a client exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")
)

// IsNotFound reports whether err is ErrNotFound or ErrCourseNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCourseNotFound)
}

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout reports whether err wraps ErrTimeout or a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ScanError represents a folder that could not be read during a scan.
type ScanError struct {
	Path string
	Kind error // ErrCourseNotFound or ErrPartialScan
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%v (path=%s): %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns both the classification and the filesystem cause.
func (e *ScanError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewScanError creates a new scan error classified by kind.
func NewScanError(path string, kind, err error) *ScanError {
	return &ScanError{
		Path: path,
		Kind: kind,
		Err:  err,
	}
}

// ProbeError represents a failed duration lookup for one video.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%v (path=%s): %v", ErrDurationResolutionFailed, e.Path, e.Err)
}

// Unwrap returns the resolution failure sentinel and the oracle cause.
func (e *ProbeError) Unwrap() []error {
	return []error{ErrDurationResolutionFailed, e.Err}
}

// NewProbeError creates a new probe error.
func NewProbeError(path string, err error) *ProbeError {
	return &ProbeError{
		Path: path,
		Err:  err,
	}
}
