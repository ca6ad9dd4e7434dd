package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Run executes cmd on a new channel. stdin, when nil, is empty so the remote
// side sees end-of-input immediately. A non-zero exit status is reported in
// the result, not as an error.
func (c *SSHClient) Run(ctx context.Context, cmd string, stdin io.Reader) (*ExecResult, error) {
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	startTime := time.Now()
	log.Debug().Str("command", cmd).Msg("executing command")

	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	session, err := sshClient.NewSession()
	if err != nil {
		return nil, &TransportError{
			Op:          "execute",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	if stdin == nil {
		stdin = bytes.NewReader(nil)
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdin = stdin
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(cmd)
	}()

	var execErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		// Closing the channel unblocks Run; the buffers are only read once
		// it has returned.
		_ = session.Close()
		<-doneChan
		execErr = ctx.Err()
	case execErr = <-doneChan:
	}

	result := &ExecResult{
		Stdout:     stdoutBuf.Bytes(),
		Stderr:     stderrBuf.Bytes(),
		StartedAt:  startTime,
		FinishedAt: time.Now(),
	}
	result.Duration = result.FinishedAt.Sub(startTime)

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case execErr == nil:
		result.ExitCode = 0
	case errors.As(execErr, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
	case errors.As(execErr, &missingErr):
		result.ExitCode = -1
	default:
		return result, &TransportError{
			Op:          "execute",
			Err:         execErr,
			IsTemporary: true,
		}
	}

	log.Debug().
		Str("command", cmd).
		Int("exit_code", result.ExitCode).
		Int("stdout_len", len(result.Stdout)).
		Int("stderr_len", len(result.Stderr)).
		Dur("duration", result.Duration).
		Msg("command completed")

	return result, nil
}

// ExecuteCommand runs a command on the remote host and returns its trimmed
// output. A non-zero exit status is an error.
func (c *SSHClient) ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error) {
	result, err := c.Run(ctx, cmd, nil)
	if result != nil {
		stdout = strings.TrimSpace(string(result.Stdout))
		stderr = strings.TrimSpace(string(result.Stderr))
	}
	if err != nil {
		return stdout, stderr, err
	}
	if result.ExitCode != 0 {
		return stdout, stderr, &TransportError{
			Op:  "execute",
			Err: fmt.Errorf("command exited with code %d: %s", result.ExitCode, stderr),
		}
	}
	return stdout, stderr, nil
}
