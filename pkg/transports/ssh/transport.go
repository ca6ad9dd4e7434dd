// Package ssh provides the SSH transport used to push build artifacts to a
// device and run commands on it.
package ssh

import (
	"context"
	"io"
	"time"
)

// Transport defines the remote operations a deploy needs.
type Transport interface {
	// Connect establishes an SSH connection to the remote host.
	// Returns an error if connection fails or authentication is rejected.
	Connect(ctx context.Context) error

	// Disconnect closes the SSH connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// Run executes a command on a fresh channel and reports its exit code
	// without treating a non-zero status as an error.
	Run(ctx context.Context, cmd string, stdin io.Reader) (*ExecResult, error)

	// ExecuteCommand runs a command and fails on a non-zero exit status.
	ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error)

	// UploadFile copies a local file to remotePath via SFTP with the given mode.
	UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) (*FileTransferResult, error)

	// WriteFile streams r to remotePath via SFTP with the given mode.
	WriteFile(ctx context.Context, r io.Reader, remotePath string, mode uint32) (*FileTransferResult, error)

	// GetConnectionInfo returns information about the current connection.
	GetConnectionInfo() ConnectionInfo
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	Host         string
	Port         int
	User         string
	ConnectedAt  time.Time
	LastActivity time.Time
}

// ExecResult represents the result of a command execution.
type ExecResult struct {
	// Stdout is the untrimmed standard output of the command
	Stdout []byte

	// Stderr is the untrimmed standard error of the command
	Stderr []byte

	// ExitCode is the command's exit code, -1 when the server sent none
	ExitCode int

	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// FileTransferResult represents the result of a file transfer operation.
type FileTransferResult struct {
	RemotePath       string
	BytesTransferred int64
	Duration         time.Duration
	StartedAt        time.Time
	FinishedAt       time.Time
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
