package config

import (
	"fmt"
	"strings"

	"github.com/condep/condep/pkg/deploy"
	"github.com/condep/condep/pkg/profile"
)

// Workspace is a loaded catalog: the target profiles plus the per-target
// deploy settings and user policy paths.
type Workspace struct {
	// Source is the file the workspace was read from.
	Source string

	Catalog  *profile.Catalog
	Deploy   map[string]*DeployConfig
	Policies []string
}

// DefaultDeployKey names the deploy settings used for targets without
// their own entry.
const DefaultDeployKey = "default"

// DeployFor returns the deploy settings of target, falling back to the
// "default" entry.
func (w *Workspace) DeployFor(target string) (*DeployConfig, bool) {
	if d, ok := w.Deploy[target]; ok {
		return d, true
	}
	d, ok := w.Deploy[DefaultDeployKey]
	return d, ok
}

// DeployConfig holds how to reach a device and where files go on it.
type DeployConfig struct {
	Host          string       `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port          int          `json:"port" yaml:"port" validate:"min=1,max=65535"`
	User          string       `json:"user" yaml:"user" validate:"required"`
	Method        string       `json:"method" yaml:"method" validate:"oneof=ssh none"`
	Auth          string       `json:"auth" yaml:"auth" validate:"oneof=key password agent"`
	Identity      string       `json:"identity,omitempty" yaml:"identity,omitempty"`
	Password      string       `json:"password,omitempty" yaml:"-"`
	KnownHosts    string       `json:"known_hosts,omitempty" yaml:"known_hosts,omitempty"`
	StrictHostKey bool         `json:"strict_host_key" yaml:"strict_host_key"`
	Destinations  Destinations `json:"destinations" yaml:"destinations"`

	// Remount runs before any file is copied.
	Remount  string   `json:"remount,omitempty" yaml:"remount,omitempty"`
	Commands []string `json:"commands,omitempty" yaml:"commands,omitempty"`

	// Extra files shipped with the executable. Entries may reference
	// environment variables.
	Libraries   []string `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	ConfigFiles []string `json:"config_files,omitempty" yaml:"config_files,omitempty"`
	UserFiles   []string `json:"user_files,omitempty" yaml:"user_files,omitempty"`

	// Hook is the path of a Starlark script producing extra commands.
	Hook string `json:"hook,omitempty" yaml:"hook,omitempty"`

	// Proxy is an optional jump host the device is reached through.
	Proxy *ProxyConfig `json:"proxy,omitempty" yaml:"proxy,omitempty"`
}

// ProxyConfig describes a jump host.
type ProxyConfig struct {
	Host     string `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	User     string `json:"user" yaml:"user" validate:"required"`
	Auth     string `json:"auth" yaml:"auth" validate:"oneof=key password agent"`
	Identity string `json:"identity,omitempty" yaml:"identity,omitempty"`
}

// Destinations are the remote directories of the four file categories.
type Destinations struct {
	Executables string `json:"executables" yaml:"executables" validate:"required"`
	Libraries   string `json:"libraries" yaml:"libraries" validate:"required"`
	ConfigFiles string `json:"config_files" yaml:"config_files" validate:"required"`
	UserFiles   string `json:"user_files" yaml:"user_files" validate:"required"`
}

// Plan converts the directories for the deploy pipeline.
func (d Destinations) Plan() deploy.Destinations {
	return deploy.Destinations{
		Executables: d.Executables,
		Libraries:   d.Libraries,
		ConfigFiles: d.ConfigFiles,
		UserFiles:   d.UserFiles,
	}
}

// catalogDoc mirrors the #Catalog schema for decoding.
type catalogDoc struct {
	Targets  map[string]profileDoc    `json:"targets" validate:"dive"`
	Default  profileDoc               `json:"default"`
	Deploy   map[string]*DeployConfig `json:"deploy" validate:"dive"`
	Policies []string                 `json:"policies"`
}

type profileDoc struct {
	Env       []envPairDoc `json:"env" validate:"dive"`
	Sources   []string     `json:"sources"`
	Links     []linkDoc    `json:"links" validate:"dive"`
	Linker    *string      `json:"linker,omitempty"`
	LinkPaths []string     `json:"link_paths"`
}

type envPairDoc struct {
	Key        string   `json:"key" validate:"required"`
	Candidates []string `json:"candidates" validate:"required,min=1"`
	Action     string   `json:"action" validate:"oneof=set append"`
}

type linkDoc struct {
	Kind  string `json:"kind" validate:"oneof=env direct"`
	Value string `json:"value" validate:"required"`
}

// ValidationError is one problem found in a catalog.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ParseError collects every problem of a rejected catalog.
type ParseError struct {
	Errors []ValidationError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return "invalid catalog: " + strings.Join(msgs, "; ")
}
