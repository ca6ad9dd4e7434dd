package cargo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoHostTriple is returned when rustc does not report a host line.
var ErrNoHostTriple = errors.New("rustc did not report a host triple")

// Rustc is the compiler binary queried for the host triple.
var Rustc = "rustc"

// HostTriple asks the compiler for the host target triple.
func HostTriple(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, Rustc, "-vV")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -vV: %w: %s", Rustc, err, strings.TrimSpace(stderr.String()))
	}

	info := ParseVersionInfo(stdout.Bytes())
	host, ok := info["host"]
	if !ok || host == "" {
		return "", ErrNoHostTriple
	}
	return host, nil
}

// ParseVersionInfo parses the "key: value" lines of `rustc -vV`. The first
// line is the version banner and is skipped.
func ParseVersionInfo(out []byte) map[string]string {
	info := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return info
}
