// Package paths locates condep's files following the XDG base directory
// specification.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Environment variables overriding the XDG locations.
const (
	EnvCatalog = "CONDEP_CATALOG"
	EnvJournal = "CONDEP_JOURNAL"
)

const (
	// DirName is the condep subdirectory of the XDG base directories.
	DirName = "condep"

	CatalogFile  = "catalog.cue"
	JournalFile  = "journal.db"
	PoliciesDir  = "policies"
	ManifestFile = "Cargo.toml"
)

// ErrNoProject is returned when no package manifest is found above a
// directory.
var ErrNoProject = errors.New("no Cargo.toml found in any parent directory")

// CatalogPath returns where the installed catalog lives.
func CatalogPath() string {
	if p := os.Getenv(EnvCatalog); p != "" {
		return expandHome(p)
	}
	return filepath.Join(xdg.ConfigHome, DirName, CatalogFile)
}

// JournalPath returns where the deploy journal lives.
func JournalPath() string {
	if p := os.Getenv(EnvJournal); p != "" {
		return expandHome(p)
	}
	return filepath.Join(xdg.StateHome, DirName, JournalFile)
}

// PoliciesPath returns the directory of user policies installed next to
// the catalog.
func PoliciesPath() string {
	return filepath.Join(filepath.Dir(CatalogPath()), PoliciesDir)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

// ProjectRoot walks up from start to the first directory holding a
// Cargo.toml.
func ProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (started at %s)", ErrNoProject, start)
		}
		dir = parent
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
