package commands

import (
	"errors"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/cargo"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/env"
)

func newRunCommand() *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "run <exe> [args...]",
		Short: "Run a host build with the configured library path",
		Long: `Run an executable with variables taken from .cargo/config.toml prepended
to the current environment. By default only LD_LIBRARY_PATH is taken.

"condep configure" without a target installs this command as the cargo
runner of the host, so "cargo run" goes through it. The exit status of the
executable becomes the exit status of condep.`,
		Example: `  # What cargo runs for a host build
  condep run target/debug/reader --fullscreen

  # Also take QT_PLUGIN_PATH from the configuration
  condep run --env LD_LIBRARY_PATH --env QT_PLUGIN_PATH target/debug/reader`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			path := cargo.ConfigPath(root)
			cfg, err := cargo.Load(path)
			if err != nil {
				return engine.NewFatalError("failed to read the build configuration", err).
					WithOp("run").
					WithSubject(path).
					WithCode(engine.ErrCodeConfigMissing)
			}

			view := env.FromProcess()
			for _, key := range keys {
				value, ok := cfg.Env[key]
				if !ok {
					continue
				}
				if current, had := view.Lookup(key); had && current != "" {
					value = value + string(os.PathListSeparator) + current
				}
				view.Set(key, value, path)
				log.Debug().Str("key", key).Str("value", value).Msg("Setting env")
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Env = view.Environ()
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()

			if err := child.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return &ExitError{Code: exitErr.ExitCode()}
				}
				return &ExitError{Code: 127, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringSliceVar(&keys, "env", []string{"LD_LIBRARY_PATH"}, "variables to take from the configuration")

	return cmd
}
