package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		files bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past deployments",
		Long: `List deployments recorded in the deploy journal, newest first.

With --files the files copied by each deployment are listed below it.`,
		Example: `  condep history
  condep history --limit 5 --files`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path := journalFile()
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(out, "No deployments recorded")
				return nil
			}
			store, err := stores.Open(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to open the deploy journal: %w", err)
			}
			defer store.Close()

			deployments, err := store.ListDeployments(ctx, limit, 0)
			if err != nil {
				return err
			}
			if len(deployments) == 0 {
				fmt.Fprintln(out, "No deployments recorded")
				return nil
			}

			for _, d := range deployments {
				writeDeployment(out, d)
				if !files {
					continue
				}
				copied, err := store.ListFiles(ctx, d.ID)
				if err != nil {
					return err
				}
				writeFiles(out, copied)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deployments to show")
	cmd.Flags().BoolVar(&files, "files", false, "list copied files")

	return cmd
}

func writeDeployment(w io.Writer, d *stores.Deployment) {
	target := d.Target
	if target == "" {
		target = DefaultTargetName
	}
	fmt.Fprintf(w, "%s  %s  %s  %s@%s (%s)  %s",
		d.StartedAt.Local().Format(time.DateTime), d.ID, target, d.User, d.Host, d.Method, d.Status)
	if d.Stage != "" && d.Status != stores.DeploymentStatusSucceeded {
		fmt.Fprintf(w, " at %s", d.Stage)
	}
	if d.FinishedAt != nil {
		fmt.Fprintf(w, " in %s", d.FinishedAt.Sub(d.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)
	if d.Error != nil {
		fmt.Fprintf(w, "    error: %s\n", *d.Error)
	}
}

func writeFiles(w io.Writer, files []*stores.DeployedFile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "    %s\t%s\t-> %s\n", f.Category, f.LocalPath, f.RemotePath)
	}
	tw.Flush()
}
