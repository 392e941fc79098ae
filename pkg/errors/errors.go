// Package errors provides structured error types for the mockup pipeline.
//
// Every failure a job can hit is mapped onto one of a small set of codes so
// the job loop can log it uniformly and operators can grep for it:
//   - VALIDATION: malformed or incomplete job payloads
//   - NOT_FOUND: unknown category or missing base image
//   - BOUNDS: placement rule does not fit the base image
//   - NETWORK: overlay fetch or delivery transport/status failures
//   - IO: artifact write or delete failures
//   - CONFIG: invalid configuration detected at startup
//
// # Usage
//
//	err := errors.New(errors.ErrCodeValidation, "missing field(s): %s", "category")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // reject before the pipeline runs
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the job lifecycle.
const (
	ErrCodeValidation Code = "VALIDATION"
	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeBounds     Code = "BOUNDS"
	ErrCodeNetwork    Code = "NETWORK"
	ErrCodeIO         Code = "IO"
	ErrCodeConfig     Code = "CONFIG"
	ErrCodeInternal   Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Errors that carry no code are reported as INTERNAL, nil as "".
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// UserMessage returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
