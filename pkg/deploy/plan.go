// Package deploy copies build artifacts to a device and runs the commands
// that make them usable there.
package deploy

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
)

// Category groups deployed files by what they are used for on the device.
type Category int

const (
	Executables Category = iota
	Libraries
	ConfigFiles
	UserFiles
)

// Categories lists every category in copy order.
var Categories = []Category{Executables, Libraries, ConfigFiles, UserFiles}

func (c Category) String() string {
	switch c {
	case Executables:
		return "executables"
	case Libraries:
		return "libraries"
	case ConfigFiles:
		return "config_files"
	case UserFiles:
		return "user_files"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Paths holds file paths grouped by category.
type Paths struct {
	Executables []string `json:"executables,omitempty" yaml:"executables,omitempty"`
	Libraries   []string `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	ConfigFiles []string `json:"config_files,omitempty" yaml:"config_files,omitempty"`
	UserFiles   []string `json:"user_files,omitempty" yaml:"user_files,omitempty"`
}

// Get returns the paths of one category.
func (p Paths) Get(c Category) []string {
	switch c {
	case Executables:
		return p.Executables
	case Libraries:
		return p.Libraries
	case ConfigFiles:
		return p.ConfigFiles
	case UserFiles:
		return p.UserFiles
	}
	return nil
}

// Add appends a path to one category.
func (p *Paths) Add(c Category, file string) {
	switch c {
	case Executables:
		p.Executables = append(p.Executables, file)
	case Libraries:
		p.Libraries = append(p.Libraries, file)
	case ConfigFiles:
		p.ConfigFiles = append(p.ConfigFiles, file)
	case UserFiles:
		p.UserFiles = append(p.UserFiles, file)
	}
}

// Len returns the number of paths across all categories.
func (p Paths) Len() int {
	return len(p.Executables) + len(p.Libraries) + len(p.ConfigFiles) + len(p.UserFiles)
}

// Destinations holds the remote directory of each category.
type Destinations struct {
	Executables string `json:"executables" yaml:"executables"`
	Libraries   string `json:"libraries" yaml:"libraries"`
	ConfigFiles string `json:"config_files" yaml:"config_files"`
	UserFiles   string `json:"user_files" yaml:"user_files"`
}

// Dir returns the remote directory of one category.
func (d Destinations) Dir(c Category) string {
	switch c {
	case Executables:
		return d.Executables
	case Libraries:
		return d.Libraries
	case ConfigFiles:
		return d.ConfigFiles
	case UserFiles:
		return d.UserFiles
	}
	return ""
}

// RemotePath is where src lands inside dir. Remote paths are slash separated
// and keep the local base name.
func RemotePath(dir, src string) string {
	return path.Join(dir, filepath.Base(src))
}

// CopyFunc copies one local file into a remote directory and returns the
// resulting remote path.
type CopyFunc func(ctx context.Context, src, dstDir string, c Category) (string, error)

// CopyFiles copies every source file in category order. It stops at the first
// failure and returns the files copied so far together with an *Error naming
// the failing file. Nothing already copied is removed.
func CopyFiles(ctx context.Context, src Paths, dst Destinations, copy CopyFunc) (Paths, error) {
	var copied Paths
	for _, c := range Categories {
		dir := dst.Dir(c)
		for _, file := range src.Get(c) {
			remote, err := copy(ctx, file, dir, c)
			if err != nil {
				return copied, &Error{Kind: KindCopyFiles, File: file, Err: err}
			}
			copied.Add(c, remote)
		}
	}
	return copied, nil
}
