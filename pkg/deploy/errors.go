package deploy

import (
	"fmt"

	"github.com/condep/condep/pkg/engine"
)

// Kind names the deploy step an Error came from.
type Kind string

const (
	KindCopyFiles     Kind = "copy files"
	KindRemoteCommand Kind = "remote command"
	KindConnect       Kind = "connect"
	KindPolicy        Kind = "policy"
)

func (k Kind) code() string {
	switch k {
	case KindCopyFiles:
		return engine.ErrCodeCopyFailed
	case KindPolicy:
		return engine.ErrCodePolicyDenied
	case KindConnect:
		return engine.ErrCodeConnectFailed
	default:
		return engine.ErrCodeRemoteCommand
	}
}

// Error is the single error a failed deploy step surfaces.
type Error struct {
	Kind Kind
	// File is the local file, command or host the step was working on.
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("failed to %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("failed to %s: %s: %v", e.Kind, e.File, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
