// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "ctxutil.requestID"
	courseKeyKey contextKey = "ctxutil.courseKey"
)

// NewRequestID returns a fresh random request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request ID to the context for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// WithCourseKey adds the key of the course being served to the context.
func WithCourseKey(ctx context.Context, courseKey string) context.Context {
	return context.WithValue(ctx, courseKeyKey, courseKey)
}

// GetCourseKey retrieves the course key from the context.
// Returns an empty string when none was set.
func GetCourseKey(ctx context.Context) string {
	if v, ok := ctx.Value(courseKeyKey).(string); ok {
		return v
	}
	return ""
}

// PreserveTracing creates a detached context that keeps tracing values.
// The new context is independent of the parent's cancellation and deadlines,
// for work that must outlive the request, such as queued progress writes.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if courseKey := GetCourseKey(ctx); courseKey != "" {
		newCtx = WithCourseKey(newCtx, courseKey)
	}

	return newCtx
}
