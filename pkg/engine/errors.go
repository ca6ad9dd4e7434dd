// Package engine classifies the errors raised while resolving a target
// environment, emitting the build configuration and deploying artifacts.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass decides how the command layer reacts to an error.
type ErrorClass string

const (
	// ErrorClassFatal aborts the current operation with a non-zero exit.
	// Examples: a dump file that cannot be sourced, no build artifact found.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassRecoverable is reported and then ignored.
	// Examples: no candidate satisfied the predicate, a link could not be created.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassFailFast stops the deploy loop at the first failing file and
	// hands the partial progress back to the caller.
	ErrorClassFailFast ErrorClass = "fail-fast"
)

// Error is a classified error with operation context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Op names the operation that failed (dump, link, copy, ...).
	Op string `json:"op,omitempty"`

	// Subject is the file, variable or target the error is about.
	Subject string `json:"subject,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Class, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *Error {
	return &Error{Class: ErrorClassFatal, Message: message, Err: err}
}

// NewRecoverableError creates a new recoverable error.
func NewRecoverableError(message string, err error) *Error {
	return &Error{Class: ErrorClassRecoverable, Message: message, Err: err}
}

// NewFailFastError creates a new fail-fast error.
func NewFailFastError(message string, err error) *Error {
	return &Error{Class: ErrorClassFailFast, Message: message, Err: err}
}

// WithOp adds operation context to an error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithSubject records what the error is about.
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func classOf(err error) (ErrorClass, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsFatal reports whether err is classified as fatal.
func IsFatal(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassFatal
}

// IsRecoverable reports whether err is classified as recoverable.
func IsRecoverable(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassRecoverable
}

// IsFailFast reports whether err is classified as fail-fast.
func IsFailFast(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassFailFast
}

// Common error codes.
const (
	ErrCodeDumpFailed       = "DUMP_FAILED"
	ErrCodeUndefinedTarget  = "UNDEFINED_TARGET"
	ErrCodeArtifactNotFound = "ARTIFACT_NOT_FOUND"
	ErrCodeConfigMissing    = "CONFIG_MISSING"
	ErrCodeCopyFailed       = "COPY_FAILED"
	ErrCodeRemoteCommand    = "REMOTE_COMMAND_FAILED"
	ErrCodeConnectFailed    = "CONNECT_FAILED"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodeCatalogInvalid   = "CATALOG_INVALID"
)
