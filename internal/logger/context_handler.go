package logger

import (
	"context"
	"log/slog"

	"github.com/Lacarte/video-player/internal/ctxutil"
)

// ContextHandler is a slog.Handler decorator that copies tracing values
// (request_id, course_key) from the context onto every record, so call
// sites using slog.*Context do not have to pass them explicitly.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds context values as attributes and forwards the record.
// Canceling ctx does not affect record processing.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	if courseKey := ctxutil.GetCourseKey(ctx); courseKey != "" {
		r.AddAttrs(slog.String("course_key", courseKey))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler wrapping h.handler.WithAttrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler wrapping h.handler.WithGroup.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
