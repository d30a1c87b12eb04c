package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapper(t *testing.T) {
	wrapper := NewWrapper("playlist", "build_course")

	t.Run("Wrap returns nil for nil error", func(t *testing.T) {
		if result := wrapper.Wrap(nil, "Could not scan course"); result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("Wrap creates WrappedError", func(t *testing.T) {
		wrapped := wrapper.Wrap(ErrCourseNotFound, "Course folder not found")

		var wrappedErr *WrappedError
		if !errors.As(wrapped, &wrappedErr) {
			t.Fatal("expected WrappedError type")
		}
		if wrappedErr.Module != "playlist" {
			t.Errorf("expected module 'playlist', got '%s'", wrappedErr.Module)
		}
		if wrappedErr.Operation != "build_course" {
			t.Errorf("expected operation 'build_course', got '%s'", wrappedErr.Operation)
		}
		if !errors.Is(wrapped, ErrCourseNotFound) {
			t.Error("wrapped error should unwrap to ErrCourseNotFound")
		}
	})

	t.Run("Wrapf formats message", func(t *testing.T) {
		wrapped := wrapper.Wrapf(ErrNotFound, "No video at %s", "intro.mp4")

		var wrappedErr *WrappedError
		if !errors.As(wrapped, &wrappedErr) {
			t.Fatal("expected WrappedError type")
		}
		if wrappedErr.UserMessage != "No video at intro.mp4" {
			t.Errorf("unexpected user message %q", wrappedErr.UserMessage)
		}
	})
}

func TestGetUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: "boom"},
		{
			name: "wrapped",
			err:  NewWrapper("progress", "save").Wrap(ErrInvalidInput, "Position must not be negative"),
			want: "Position must not be negative",
		},
		{
			name: "wrapped twice by fmt",
			err:  fmt.Errorf("handler: %w", NewWrapper("progress", "save").Wrap(ErrInvalidInput, "Bad request")),
			want: "Bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetUserMessage(tt.err); got != tt.want {
				t.Errorf("GetUserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
