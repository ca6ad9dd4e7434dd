// Package env resolves environment variables for a cross-compilation target.
//
// Resolution never touches the process environment directly. Every read and
// write goes through a View, which keeps a log of the mutations it performed
// so callers can inspect or replay them.
package env

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// tokenPattern matches a $NAME reference. Matching is leftmost and maximal,
// so "$AAA$BBB" yields the two tokens $AAA and $BBB.
var tokenPattern = regexp.MustCompile(`\$[_a-zA-Z][_a-zA-Z0-9]*`)

// LookupFunc returns the value of an environment variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// Expand substitutes every $NAME token in s with the value returned by
// lookup. Unresolved tokens are left in place verbatim. Substituted values
// are not expanded again.
func Expand(s string, lookup LookupFunc) string {
	if lookup == nil {
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if v, ok := lookup(tok[1:]); ok {
			return v
		}
		return tok
	})
}

// References returns the variable names referenced by s in order of appearance.
func References(s string) []string {
	matches := tokenPattern.FindAllString(s, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1:])
	}
	return names
}

// EnvString is a template that may contain $NAME references.
type EnvString string

// String returns the raw template.
func (s EnvString) String() string {
	return string(s)
}

// Expand expands the template against lookup.
func (s EnvString) Expand(lookup LookupFunc) string {
	return Expand(string(s), lookup)
}

// Path expands the template and canonicalizes the result into an absolute
// path with symlinks resolved. The path must exist.
func (s EnvString) Path(lookup LookupFunc) (string, error) {
	expanded := s.Expand(lookup)
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to make %q absolute: %w", expanded, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize %q: %w", expanded, err)
	}
	return resolved, nil
}

// Strings converts plain strings into templates.
func Strings(values ...string) []EnvString {
	out := make([]EnvString, len(values))
	for i, v := range values {
		out[i] = EnvString(v)
	}
	return out
}
