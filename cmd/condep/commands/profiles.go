package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/profile"
)

// DefaultTargetName stands for the host build in listings.
const DefaultTargetName = "(host)"

// profileSummary is one target as listed by "condep profiles".
type profileSummary struct {
	Target  string   `json:"target" yaml:"target"`
	Env     []string `json:"env" yaml:"env"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Linker  string   `json:"linker,omitempty" yaml:"linker,omitempty"`
	Links   int      `json:"links" yaml:"links"`
	Deploy  string   `json:"deploy,omitempty" yaml:"deploy,omitempty"`
}

func newProfilesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the targets of the active catalog",
		Example: `  condep profiles
  condep profiles --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			return writeProfiles(cmd.OutOrStdout(), format, summarize(ws))
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format (text, yaml, json)")

	return cmd
}

// summarize lists the default profile first, then targets by name.
func summarize(ws *config.Workspace) []profileSummary {
	var out []profileSummary
	if ws.Catalog.Default != nil {
		out = append(out, summarizeProfile(ws, "", ws.Catalog.Default))
	}
	for _, name := range ws.Catalog.TargetNames() {
		out = append(out, summarizeProfile(ws, name, ws.Catalog.Targets[name]))
	}
	return out
}

func summarizeProfile(ws *config.Workspace, target string, p *profile.TargetProfile) profileSummary {
	s := profileSummary{Target: target, Env: []string{}, Links: len(p.Links)}
	if target == "" {
		s.Target = DefaultTargetName
	}
	for _, pair := range p.Env {
		s.Env = append(s.Env, pair.Key)
	}
	for _, src := range p.Sources {
		s.Sources = append(s.Sources, src.String())
	}
	if p.Linker != nil {
		s.Linker = p.Linker.String()
	}
	if dc, ok := ws.DeployFor(target); ok {
		s.Deploy = fmt.Sprintf("%s@%s:%d", dc.User, dc.Host, dc.Port)
	}
	return s
}

func writeProfiles(w io.Writer, format string, profiles []profileSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(profiles); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tENV\tLINKER\tDEPLOY")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Target, strings.Join(p.Env, ","), orDash(p.Linker), orDash(p.Deploy))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want text, yaml or json)", format)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
