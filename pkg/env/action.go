package env

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// MergeAction decides how a resolved value is combined with the current one.
type MergeAction int

const (
	// Set overwrites the variable.
	Set MergeAction = iota
	// Append prepends the value to the variable's path list.
	Append
)

// String returns the catalog spelling of the action.
func (a MergeAction) String() string {
	switch a {
	case Set:
		return "set"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("MergeAction(%d)", int(a))
	}
}

// ParseMergeAction parses "set" or "append". An empty string means Set.
func ParseMergeAction(s string) (MergeAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "set":
		return Set, nil
	case "append":
		return Append, nil
	default:
		return Set, fmt.Errorf("unknown merge action %q", s)
	}
}

// Apply merges value into key and returns the effective value. The boolean
// is true only when an Append actually joined onto an existing list.
//
// Append falls back to Set without reporting an error when the variable is
// unset or the joined list cannot be formed. Profiles that bootstrap a path
// variable with a literal list depend on this fallback.
func (a MergeAction) Apply(v *View, key, value string) (string, bool) {
	source := a.String()
	if a == Append {
		if existing, ok := v.Lookup(key); ok {
			entries := append([]string{value}, filepath.SplitList(existing)...)
			if joined, err := JoinPathList(entries); err == nil {
				v.Set(key, joined, source)
				return joined, true
			}
		}
	}
	v.Set(key, value, source)
	return value, false
}

// JoinPathList joins entries with the platform list separator. An entry that
// contains the separator cannot be represented and is rejected.
func JoinPathList(entries []string) (string, error) {
	sep := string(os.PathListSeparator)
	for _, e := range entries {
		if strings.Contains(e, sep) {
			return "", fmt.Errorf("path entry %q contains separator %q", e, sep)
		}
		if runtime.GOOS == "windows" && strings.Contains(e, `"`) {
			return "", fmt.Errorf("path entry %q contains a double quote", e)
		}
	}
	return strings.Join(entries, sep), nil
}
