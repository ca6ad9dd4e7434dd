package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		fatal       bool
		recoverable bool
		failFast    bool
	}{
		{"fatal", NewFatalError("dump failed", cause), true, false, false},
		{"recoverable", NewRecoverableError("link failed", cause), false, true, false},
		{"fail-fast", NewFailFastError("copy failed", cause), false, false, true},
		{"wrapped fatal", fmt.Errorf("configure: %w", NewFatalError("x", nil)), true, false, false},
		{"plain", cause, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			if got := IsRecoverable(tt.err); got != tt.recoverable {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.recoverable)
			}
			if got := IsFailFast(tt.err); got != tt.failFast {
				t.Errorf("IsFailFast() = %v, want %v", got, tt.failFast)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	err := NewFatalError("failed to source dump file", cause).
		WithOp("dump").
		WithSubject("/sdk/env.sh").
		WithCode(ErrCodeDumpFailed)

	want := "[fatal] failed to source dump file (/sdk/env.sh): no such file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !errors.Is(err, &Error{Class: ErrorClassFatal, Code: ErrCodeDumpFailed}) {
		t.Error("errors.Is should match class and code")
	}
	if errors.Is(err, &Error{Class: ErrorClassFatal, Code: ErrCodeArtifactNotFound}) {
		t.Error("errors.Is should not match a different code")
	}
}
