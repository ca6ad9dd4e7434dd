package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/policy"
)

func newPoliciesCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the policies a deploy is checked against",
		Long: `List the built-in policies together with those named by the catalog and
those installed under the policies directory. A policy loaded from a file
replaces a built-in one of the same name.

Any of them can be left out of a single deploy with --skip-policy.`,
		Example: `  condep policies
  condep policies --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			pe, err := newPolicyEngine(cmd.Context(), ws)
			if err != nil {
				return err
			}
			return writePolicies(cmd.OutOrStdout(), jsonOut, pe.ListPolicies())
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON including the Rego source")

	return cmd
}

func writePolicies(w io.Writer, jsonOut bool, policies []policy.Policy) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(policies)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSEVERITY\tSOURCE\tDESCRIPTION")
	for _, p := range policies {
		source := p.Source
		if source == "" {
			source = "built-in"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Severity, source, p.Description)
	}
	return tw.Flush()
}
