package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
)

func TestConfig_DSN(t *testing.T) {
	t.Parallel()

	cfg := Config{Token: "abc", Host: "errors.betterstack.com"}
	if got, want := cfg.DSN(), "https://abc@errors.betterstack.com/1"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()

	err := Initialize(Config{Token: "test-token", Host: ""})
	if err == nil {
		t.Error("Expected error when host is missing")
	}
}

func TestInitialize(t *testing.T) {
	// Cannot use t.Parallel() as Sentry uses global state

	if err := Initialize(Config{Token: ""}); err != nil {
		t.Errorf("Expected nil error for empty token, got %v", err)
	}
	if IsEnabled() {
		t.Error("Expected IsEnabled() to return false when token is empty")
	}

	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}

	CaptureException(context.Background(), errors.New("boom"), map[string]string{"module": "test"})
	Flush(time.Second)
}

func TestDropCanceled(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{}
	if got := dropCanceled(event, &sentry.EventHint{OriginalException: context.Canceled}); got != nil {
		t.Error("Expected canceled request to be dropped")
	}
	if got := dropCanceled(event, &sentry.EventHint{OriginalException: errors.New("disk full")}); got != event {
		t.Error("Expected other errors to be kept")
	}
	if got := dropCanceled(event, nil); got != event {
		t.Error("Expected event without hint to be kept")
	}
}
