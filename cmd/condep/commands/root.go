package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/engine"
)

var (
	// Global flags
	catalogPath   string
	projectDir    string
	logFormat     string
	verbose       bool
	traceExporter string
	metricsFile   string
	journalPath   string
)

// ExitError carries a process exit status. Err is nil when the status
// was already reported, as with a child process run by "condep run".
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	return finish(ctx, err)
}

// finish records the error class and flushes telemetry.
func finish(ctx context.Context, err error) error {
	if app.tel == nil {
		return err
	}
	var classified *engine.Error
	if errors.As(err, &classified) {
		app.tel.Metrics.RecordError(string(classified.Class), classified.Code)
	}
	if shutdownErr := app.tel.Shutdown(ctx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("Failed to flush telemetry")
	}
	app.tel = nil
	return err
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "condep",
		Short: "condep - cross-compilation environment and device deployment",
		Long: `condep resolves the environment a cross-compilation toolchain needs for a
target, writes it into the project's .cargo/config.toml, and ships the built
binary to an embedded Linux device over SSH.

Target profiles and device settings come from a CUE catalog. Without an
installed catalog the built-in PocketBook profile is used.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupTelemetry(version)
		},
	}

	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (default $CONDEP_CATALOG or $XDG_CONFIG_HOME/condep/catalog.cue)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "project directory (default: nearest directory with a Cargo.toml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "none", "trace exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write metrics in textfile format to this path on exit")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "deploy journal database (default $CONDEP_JOURNAL or $XDG_STATE_HOME/condep/journal.db)")

	rootCmd.AddCommand(newConfigureCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newProfilesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPoliciesCommand())

	return rootCmd
}
