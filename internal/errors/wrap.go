package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper tags handler errors with where they happened and a message
// that is safe to return to the player.
type ErrorWrapper struct {
	module    string // playlist, duration, progress, settings, media
	operation string
}

// NewWrapper returns a wrapper for one module and operation.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap returns nil for a nil err.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		UserMessage: userMessage,
		Cause:       err,
	}
}

// Wrapf is Wrap with a formatted user message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// WrappedError keeps the internal cause for logs and errors.Is, and the
// user message for the response body.
type WrappedError struct {
	Module      string
	Operation   string
	UserMessage string
	Cause       error
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.UserMessage, e.Cause)
}

func (e *WrappedError) Unwrap() error { return e.Cause }

// GetUserMessage returns the user message of the outermost WrappedError in
// the chain, or err.Error() when there is none.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.UserMessage
	}
	return err.Error()
}
