// Package cargo reads and writes the build tool's configuration artifact and
// package manifest.
package cargo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Keys of a per-target table.
const (
	KeyLinker = "linker"
	KeyRunner = "runner"
)

// Build is the [build] table.
type Build struct {
	Jobs      int      `toml:"jobs"`
	Target    string   `toml:"target,omitempty"`
	Rustflags []string `toml:"rustflags"`
}

// Config is the configuration artifact written to .cargo/config.toml.
type Config struct {
	Alias  map[string]string         `toml:"alias,omitempty"`
	Build  Build                     `toml:"build"`
	Env    map[string]string         `toml:"env"`
	Target map[string]map[string]any `toml:"target,omitempty"`
}

// ConfigPath returns the artifact location for a project root.
func ConfigPath(root string) string {
	return filepath.Join(root, ".cargo", "config.toml")
}

// Load reads the artifact at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrEmpty reads the artifact at path, returning an empty config when it does not exist.
func LoadOrEmpty(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Marshal encodes the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// TargetValue returns target.<target>.<key> as a string.
func (c *Config) TargetValue(target, key string) (string, bool) {
	table, ok := c.Target[target]
	if !ok {
		return "", false
	}
	s, ok := table[key].(string)
	return s, ok
}

// SetTargetValue sets target.<target>.<key>.
func (c *Config) SetTargetValue(target, key string, value any) {
	if c.Target == nil {
		c.Target = make(map[string]map[string]any)
	}
	table, ok := c.Target[target]
	if !ok {
		table = make(map[string]any)
		c.Target[target] = table
	}
	table[key] = value
}

// SearchPaths returns the library search paths recorded in build.rustflags.
func (c *Config) SearchPaths() []string {
	var paths []string
	for i := 0; i < len(c.Build.Rustflags)-1; i++ {
		if c.Build.Rustflags[i] == SearchPathFlag {
			paths = append(paths, c.Build.Rustflags[i+1])
			i++
		}
	}
	return paths
}
