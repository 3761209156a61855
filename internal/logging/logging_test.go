package logging

import (
	"errors"
	"testing"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("session.store", "abc", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorFormatsAndUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("session.store", "abc", base)

	if got, want := err.Error(), "session.store (session_id=abc): boom"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to find the wrapped error")
	}

	plain := NewOperationError("config.load", "", base)
	if got, want := plain.Error(), "config.load: boom"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatal("expected debug level to be enabled")
	}
}
