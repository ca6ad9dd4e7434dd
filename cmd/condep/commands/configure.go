package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/condep/condep/pkg/cargo"
	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/env"
	"github.com/condep/condep/pkg/profile"
)

var _ pflag.Value = (*profile.LogLevel)(nil)

func newConfigureCommand() *cobra.Command {
	var (
		target   string
		logLevel = profile.LogPretty
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Resolve the toolchain environment and write .cargo/config.toml",
		Long: `Resolve the environment of a target profile and write it into the
project's .cargo/config.toml.

Dump files of the profile are sourced first, then every environment
variable is set from the first candidate that exists, links are created in
the project directory, and the linker and library search paths are recorded.
Without --target the host build is configured and "cargo run" goes through
"condep run".`,
		Example: `  # Configure a cross build
  condep configure --target armv7-unknown-linux-gnueabi

  # Configure the host build and show every harvested variable
  condep configure --log-level verbose

  # Reconfigure whenever the catalog changes
  condep configure --target armv7-unknown-linux-gnueabi --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := configure(ctx, out, target, logLevel); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			path := activeCatalog()
			if path == "" {
				return fmt.Errorf("--watch needs a catalog file, the built-in catalog never changes")
			}
			return config.Watch(ctx, path, func(ctx context.Context) error {
				return configure(ctx, out, target, logLevel)
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target triple (default: host build)")
	cmd.Flags().Var(&logLevel, "log-level", "resolution report (off, pretty, verbose)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reconfigure when the catalog changes")

	return cmd
}

// configure runs one resolution and writes the artifact. An undefined
// target is reported but is not an error.
func configure(ctx context.Context, out io.Writer, target string, level profile.LogLevel) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}

	p, ok := ws.Catalog.Select(target)
	if !ok {
		undefined := engine.NewRecoverableError("undefined target", profile.ErrUndefinedTarget).
			WithSubject(target).
			WithCode(engine.ErrCodeUndefinedTarget)
		metrics().RecordError(string(undefined.Class), undefined.Code)
		log.Warn().
			Str("target", target).
			Strs("known", ws.Catalog.TargetNames()).
			Msg("Undefined target")
		return nil
	}

	root, err := projectRoot()
	if err != nil {
		return err
	}

	resolver := profile.Resolver{
		WorkDir: root,
		Reporter: profile.MultiReporter{
			profile.NewLogReporter(reportLogger(out), level),
			metricsReporter{m: metrics()},
		},
	}
	res, err := resolver.Resolve(ctx, p, env.FromProcess())
	if err != nil {
		return err
	}

	path := cargo.ConfigPath(root)
	existing, err := cargo.LoadOrEmpty(path)
	if err != nil {
		return engine.NewFatalError("failed to read the build configuration", err).
			WithOp("configure").
			WithSubject(path).
			WithCode(engine.ErrCodeConfigMissing)
	}

	emitter := cargo.Emitter{Alias: existing.Alias}
	cfg, err := emitter.Emit(ctx, target, res)
	if err != nil {
		return engine.NewFatalError("failed to build the configuration", err).WithOp("configure")
	}
	if err := cfg.Save(path); err != nil {
		return engine.NewFatalError("failed to write the build configuration", err).
			WithOp("configure").
			WithSubject(path)
	}

	log.Info().
		Str("target", target).
		Str("path", path).
		Int("env", len(res.Pairs)).
		Int("unresolved", len(res.Unresolved)).
		Msg("Configuration written")
	return nil
}
