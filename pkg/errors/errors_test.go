package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeValidation, "missing field(s): %s", "category")

	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeValidation)
	}

	if err.Message != "missing field(s): category" {
		t.Errorf("Message = %v, want %v", err.Message, "missing field(s): category")
	}

	expected := "VALIDATION: missing field(s): category"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeNetwork, cause, "fetch overlay")

	if err.Code != ErrCodeNetwork {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNetwork)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	expected := "NETWORK: fetch overlay: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeBounds, "x"), ErrCodeBounds, true},
		{"different code", New(ErrCodeBounds, "x"), ErrCodeIO, false},
		{"wrapped with fmt", fmt.Errorf("stage: %w", New(ErrCodeNotFound, "x")), ErrCodeNotFound, true},
		{"plain error", errors.New("plain"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
	if got := GetCode(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("GetCode(plain) = %q, want %q", got, ErrCodeInternal)
	}
	wrapped := fmt.Errorf("persist: %w", Wrap(ErrCodeIO, errors.New("disk full"), "write artifact"))
	if got := GetCode(wrapped); got != ErrCodeIO {
		t.Errorf("GetCode(wrapped) = %q, want %q", got, ErrCodeIO)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeNotFound, "unknown category %q", "HOODIE")); got != `unknown category "HOODIE"` {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}
