package env

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"
)

// DefaultShell sources dump files.
const DefaultShell = "/bin/bash"

// ErrShellUnavailable is returned on platforms without a POSIX shell.
var ErrShellUnavailable = errors.New("sourcing environment dumps requires a POSIX shell")

// dumpScript sources $1 and prints the resulting environment. The path is
// passed as a positional argument so it needs no quoting.
const dumpScript = `. "$1" && env`

// Dumper harvests the environment produced by sourcing a shell script.
type Dumper struct {
	// Shell is the shell binary. Empty means DefaultShell.
	Shell string
}

// Dump sources script in a child shell started with environ and returns
// every KEY=VALUE line the shell printed afterwards. Lines without '=' are
// skipped. A nil environ inherits the process environment.
func (d Dumper) Dump(ctx context.Context, script string, environ []string) (map[string]string, error) {
	if runtime.GOOS == "windows" {
		return nil, ErrShellUnavailable
	}

	shell := d.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", dumpScript, "condep-dump", script)
	if environ != nil {
		cmd.Env = environ
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("sourcing %s exited with status %d: %s",
				script, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to execute %s: %w", shell, err)
	}

	return ParseEnvOutput(stdout.Bytes())
}

// ParseEnvOutput parses the output of env(1). Each line is split on the first '='.
func ParseEnvOutput(out []byte) (map[string]string, error) {
	if !utf8.Valid(out) {
		return nil, errors.New("environment dump is not valid UTF-8")
	}

	vars := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read environment dump: %w", err)
	}
	return vars, nil
}
