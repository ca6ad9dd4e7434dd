package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/condep/condep/pkg/env"
)

// ErrVariableNotPresent is returned when an EnvLookup link names an unset variable.
var ErrVariableNotPresent = errors.New("variable not present")

// LinkKind says how a link source is obtained.
type LinkKind int

const (
	// Direct uses the value as a literal path.
	Direct LinkKind = iota
	// EnvLookup reads the path from the named environment variable.
	EnvLookup
)

// String returns the catalog spelling of the kind.
func (k LinkKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case EnvLookup:
		return "env"
	default:
		return fmt.Sprintf("LinkKind(%d)", int(k))
	}
}

// ParseLinkKind parses "direct" or "env".
func ParseLinkKind(s string) (LinkKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return Direct, nil
	case "env", "envlookup":
		return EnvLookup, nil
	default:
		return Direct, fmt.Errorf("unknown link kind %q", s)
	}
}

// LinkSpec describes a symbolic link to create in the working directory.
type LinkSpec struct {
	Kind  LinkKind `json:"kind"`
	Value string   `json:"value"`
}

// Link is a symbolic link that was created.
type Link struct {
	Source string `json:"source"`
	Path   string `json:"path"`
}

// LinkError reports a link that could not be created.
type LinkError struct {
	Spec LinkSpec
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s %q: %v", e.Spec.Kind, e.Spec.Value, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// SymlinkFunc creates newname as a symbolic link to oldname.
type SymlinkFunc func(oldname, newname string) error

// LinkInDir creates dir/base(source) pointing at source.
func LinkInDir(source, dir string, symlink SymlinkFunc) (Link, error) {
	if symlink == nil {
		symlink = os.Symlink
	}
	base := filepath.Base(filepath.Clean(source))
	if source == "" || base == "." || base == string(filepath.Separator) {
		return Link{}, fmt.Errorf("link source %q has no final path component", source)
	}
	path := filepath.Join(dir, base)
	if err := symlink(source, path); err != nil {
		return Link{}, err
	}
	return Link{Source: source, Path: path}, nil
}

// LinkInto resolves the link source against v and links it into dir.
// An EnvLookup value may carry a leading '$'.
func (l LinkSpec) LinkInto(v *env.View, dir string, symlink SymlinkFunc) (Link, error) {
	var source string
	switch l.Kind {
	case EnvLookup:
		name := strings.TrimPrefix(l.Value, "$")
		value, ok := v.Lookup(name)
		if !ok {
			return Link{}, &LinkError{Spec: l, Err: fmt.Errorf("%w: %s", ErrVariableNotPresent, name)}
		}
		source = value
	default:
		source = l.Value
	}

	link, err := LinkInDir(source, dir, symlink)
	if err != nil {
		return Link{}, &LinkError{Spec: l, Err: err}
	}
	return link, nil
}
