package deploy

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/condep/condep/pkg/transports/ssh"
)

// FileMode is the mode every copied file is created with. Executables are
// made executable by an explicit post-copy command.
const FileMode = 0o644

// Session is an open connection to one device. A session is owned by a single
// deploy and is not safe for concurrent use.
type Session interface {
	// Deploy copies src into dst and returns the remote paths, see CopyFiles.
	Deploy(ctx context.Context, src Paths, dst Destinations) (Paths, error)

	// CallRemote runs cmd on a fresh channel and returns its standard output.
	// A non-zero exit status is not an error.
	CallRemote(ctx context.Context, cmd []byte) ([]byte, error)

	// Close releases the connection.
	Close() error
}

// Remote is the part of the SSH transport a session needs.
type Remote interface {
	UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) (*ssh.FileTransferResult, error)
	Run(ctx context.Context, cmd string, stdin io.Reader) (*ssh.ExecResult, error)
	Disconnect() error
}

// SSHSession deploys over an SSH connection.
type SSHSession struct {
	remote Remote
	logger zerolog.Logger
}

var (
	_ Session = (*SSHSession)(nil)
	_ Session = (*NoopSession)(nil)
)

// NewSSHSession wraps an already connected remote.
func NewSSHSession(remote Remote, logger zerolog.Logger) *SSHSession {
	return &SSHSession{remote: remote, logger: logger}
}

// Dial connects to the device described by config.
func Dial(ctx context.Context, config *ssh.Config, logger zerolog.Logger) (*SSHSession, error) {
	client, err := ssh.NewSSHClient(config)
	if err != nil {
		return nil, &Error{Kind: KindConnect, File: config.Address(), Err: err}
	}
	if err := client.Connect(ctx); err != nil {
		return nil, &Error{Kind: KindConnect, File: config.Address(), Err: err}
	}
	return NewSSHSession(client, logger), nil
}

func (s *SSHSession) Deploy(ctx context.Context, src Paths, dst Destinations) (Paths, error) {
	return CopyFiles(ctx, src, dst, s.copy)
}

func (s *SSHSession) copy(ctx context.Context, src, dstDir string, c Category) (string, error) {
	remote := RemotePath(dstDir, src)
	result, err := s.remote.UploadFile(ctx, src, remote, FileMode)
	if err != nil {
		return "", err
	}
	s.logger.Debug().
		Str("category", c.String()).
		Str("remote", remote).
		Int64("bytes", result.BytesTransferred).
		Msg("copied")
	return remote, nil
}

func (s *SSHSession) CallRemote(ctx context.Context, cmd []byte) ([]byte, error) {
	result, err := s.remote.Run(ctx, string(cmd), nil)
	if err != nil {
		return nil, &Error{Kind: KindRemoteCommand, File: string(cmd), Err: err}
	}
	if result.ExitCode != 0 {
		s.logger.Warn().
			Str("command", string(cmd)).
			Int("status", result.ExitCode).
			Msg("Bad status")
	}
	return result.Stdout, nil
}

func (s *SSHSession) Close() error {
	return s.remote.Disconnect()
}

// NoopSession plans a deploy without touching a device. Deploy reports the
// remote paths files would get and CallRemote runs nothing.
type NoopSession struct {
	logger zerolog.Logger
}

// NewNoopSession returns a dry-run session.
func NewNoopSession(logger zerolog.Logger) *NoopSession {
	return &NoopSession{logger: logger}
}

func (s *NoopSession) Deploy(ctx context.Context, src Paths, dst Destinations) (Paths, error) {
	return CopyFiles(ctx, src, dst, func(_ context.Context, file, dir string, c Category) (string, error) {
		remote := RemotePath(dir, file)
		s.logger.Info().Str("category", c.String()).Str("local", file).Str("remote", remote).Msg("would copy")
		return remote, nil
	})
}

func (s *NoopSession) CallRemote(_ context.Context, cmd []byte) ([]byte, error) {
	s.logger.Info().Str("command", string(cmd)).Msg("would run")
	return nil, nil
}

func (s *NoopSession) Close() error { return nil }
