package cargo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/condep/condep/pkg/engine"
)

// ErrArtifactNotFound is returned when neither a release nor a debug build exists.
var ErrArtifactNotFound = errors.New("build artifact not found")

// Profiles searched for the build artifact, in order.
var buildProfiles = []string{"release", "debug"}

// Package is the [package] table of the manifest.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
}

// Manifest is the subset of Cargo.toml condep reads.
type Manifest struct {
	Package Package `toml:"package"`
}

// ManifestPath returns the manifest location for a project root.
func ManifestPath(root string) string {
	return filepath.Join(root, "Cargo.toml")
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("%s has no package.name", path)
	}
	return &m, nil
}

// LocateArtifact returns target/[<target>/]<profile>/<name> under root for
// the first profile in which it exists, trying release before debug.
func LocateArtifact(root, target, name string) (string, error) {
	return LocateArtifactIn(root, target, name, buildProfiles...)
}

// LocateArtifactIn is LocateArtifact restricted to the given profiles.
func LocateArtifactIn(root, target, name string, profiles ...string) (string, error) {
	base := filepath.Join(root, "target")
	if target != "" {
		base = filepath.Join(base, target)
	}

	tried := make([]string, 0, len(profiles))
	for _, p := range profiles {
		candidate := filepath.Join(base, p, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}

	return "", engine.NewFatalError("no build artifact", ErrArtifactNotFound).
		WithOp("locate").
		WithSubject(fmt.Sprint(tried)).
		WithCode(engine.ErrCodeArtifactNotFound)
}
