package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/cargo"
	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/deploy"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/env"
	"github.com/condep/condep/pkg/paths"
	"github.com/condep/condep/pkg/policy"
	"github.com/condep/condep/pkg/profile"
	"github.com/condep/condep/pkg/stores"
	"github.com/condep/condep/pkg/transports/ssh"
)

// EnvSSHPassword supplies the password for password authentication when the
// catalog holds none.
const EnvSSHPassword = "CONDEP_SSH_PASSWORD"

// EnvSSHProxyPassword supplies the jump host password.
const EnvSSHProxyPassword = "CONDEP_SSH_PROXY_PASSWORD"

type deployOptions struct {
	logLevel profile.LogLevel
	method   string
	host     string
	user     string
	port     int
	identity string
	debug    bool
	skip     []string
}

func newDeployCommand() *cobra.Command {
	opts := deployOptions{logLevel: profile.LogPretty}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Copy the built executable to the device and run the post-deploy commands",
		Long: `Deploy the artifact of the configured target to the device.

The target is read from .cargo/config.toml and the executable is looked up
under target/<target>/release, then target/<target>/debug. Extra libraries,
config files and user files come from the deploy section of the catalog.
The plan is checked against the deploy policies before connecting.

With --method none nothing is copied or run, the remote paths the files
would land on are printed instead.`,
		Example: `  # Deploy over SSH using the catalog settings
  condep deploy

  # Show where files would go without touching the device
  condep deploy --method none

  # Deploy the debug build to another device
  condep deploy --debug --host 192.168.2.15 --user reader

  # Deploy into a tmpfs the protected-paths policy would refuse
  condep deploy --skip-policy protected-paths`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), cmd.OutOrStdout(), cmd.Flags().Changed("method"), opts)
		},
	}

	cmd.Flags().Var(&opts.logLevel, "log-level", "progress report (off, pretty, verbose)")
	cmd.Flags().StringVar(&opts.method, "method", "ssh", "deploy method (ssh, none)")
	cmd.Flags().StringVar(&opts.host, "host", "", "device address (overrides the catalog)")
	cmd.Flags().StringVar(&opts.user, "user", "", "remote user (overrides the catalog)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "SSH port (overrides the catalog)")
	cmd.Flags().StringVar(&opts.identity, "identity", "", "private key file (implies key authentication)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "deploy the debug build only")
	cmd.Flags().StringSliceVar(&opts.skip, "skip-policy", nil, "policies to leave out of the check (see condep policies)")

	return cmd
}

func runDeploy(ctx context.Context, out io.Writer, methodSet bool, opts deployOptions) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	cfgPath := cargo.ConfigPath(root)
	cfg, err := cargo.Load(cfgPath)
	if err != nil {
		return engine.NewFatalError("failed to read the build configuration", err).
			WithOp("deploy").
			WithSubject(cfgPath).
			WithCode(engine.ErrCodeConfigMissing)
	}
	target := cfg.Build.Target

	manifestPath := cargo.ManifestPath(root)
	manifest, err := cargo.LoadManifest(manifestPath)
	if err != nil {
		return engine.NewFatalError("failed to read the package manifest", err).
			WithOp("deploy").
			WithSubject(manifestPath).
			WithCode(engine.ErrCodeConfigMissing)
	}

	var exe string
	if opts.debug {
		exe, err = cargo.LocateArtifactIn(root, target, manifest.Package.Name, "debug")
	} else {
		exe, err = cargo.LocateArtifact(root, target, manifest.Package.Name)
	}
	if err != nil {
		return engine.NewFatalError("no build to deploy", err).
			WithOp("deploy").
			WithSubject(manifest.Package.Name).
			WithCode(engine.ErrCodeArtifactNotFound)
	}

	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	dc, ok := ws.DeployFor(target)
	if !ok {
		return engine.NewFatalError("no deploy settings", fmt.Errorf("the catalog has no deploy entry for %q or %q", target, config.DefaultDeployKey)).
			WithOp("deploy").
			WithSubject(target).
			WithCode(engine.ErrCodeConfigMissing)
	}
	dc = applyOverrides(*dc, methodSet, opts)

	view := env.FromProcess()
	view.Merge(cfg.Env, cfgPath)

	var src deploy.Paths
	src.Add(deploy.Executables, exe)
	for _, extra := range []struct {
		c     deploy.Category
		files []string
	}{
		{deploy.Libraries, dc.Libraries},
		{deploy.ConfigFiles, dc.ConfigFiles},
		{deploy.UserFiles, dc.UserFiles},
	} {
		for _, f := range extra.files {
			src.Add(extra.c, view.Expand(env.EnvString(f)))
		}
	}
	dst := dc.Destinations.Plan()

	commands := dc.Commands
	if dc.Remount != "" {
		commands = append([]string{dc.Remount}, commands...)
	}
	if err := checkPolicies(ctx, ws, dc, target, src, dst, commands, opts.skip); err != nil {
		return err
	}

	logger := log.Logger
	session, err := openSession(ctx, dc, logger)
	if err != nil {
		return connectError(dc.Host, err)
	}
	defer session.Close()

	observers := []deploy.Observer{
		metricsObserver{m: metrics()},
		progressObserver{logger: reportLogger(out), level: opts.logLevel},
	}
	if opts.logLevel != profile.LogOff {
		observers = append(observers, outputObserver{w: out})
	}
	if store := openJournal(ctx); store != nil {
		defer store.Close()
		d := &stores.Deployment{Target: target, Host: dc.Host, User: dc.User, Method: dc.Method}
		if err := store.CreateDeployment(ctx, d); err != nil {
			log.Warn().Err(err).Msg("Failed to journal the deployment")
		} else {
			observers = append(observers, store.Observer(ctx, d.ID, logger))
		}
	}

	pipeline := deploy.Pipeline{
		Session:   session,
		Remount:   dc.Remount,
		Commands:  dc.Commands,
		Observers: observers,
		Logger:    logger,
	}
	if dc.Hook != "" {
		pipeline.Hook = config.NewHookEvaluator(0).Hook(dc.Hook, cfg.Env)
	}

	result, err := pipeline.Run(ctx, target, src, dst)
	if err != nil {
		return err
	}
	log.Info().
		Str("target", target).
		Str("host", dc.Host).
		Str("method", dc.Method).
		Int("files", result.Copied.Len()).
		Dur("duration", result.Duration()).
		Msg("Deploy finished")
	return nil
}

// applyOverrides returns the catalog settings with the command line flags
// applied on top.
func applyOverrides(dc config.DeployConfig, methodSet bool, opts deployOptions) *config.DeployConfig {
	if methodSet || dc.Method == "" {
		dc.Method = opts.method
	}
	if opts.host != "" {
		dc.Host = opts.host
	}
	if opts.user != "" {
		dc.User = opts.user
	}
	if opts.port != 0 {
		dc.Port = opts.port
	}
	if opts.identity != "" {
		dc.Identity = opts.identity
		dc.Auth = string(ssh.AuthMethodKey)
	}
	return &dc
}

// connectError classifies a failed connection. Transport failures may go
// away on retry, a bad client configuration will not.
func connectError(host string, err error) *engine.Error {
	msg := "deploy failed"
	var te *ssh.TransportError
	if errors.As(err, &te) && te.Temporary() {
		msg = "deploy failed, the device may be unreachable for now"
	}
	return engine.NewFailFastError(msg, err).
		WithOp(string(deploy.KindConnect)).
		WithSubject(host).
		WithCode(engine.ErrCodeConnectFailed)
}

// newPolicyEngine loads the built-in policies, the catalog's policies and
// those installed next to the catalog.
func newPolicyEngine(ctx context.Context, ws *config.Workspace) (*policy.Engine, error) {
	pe, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}

	policyPaths := append([]string{}, ws.Policies...)
	if dir := paths.PoliciesPath(); dirExists(dir) {
		policyPaths = append(policyPaths, dir)
	}
	if len(policyPaths) > 0 {
		if err := pe.LoadPolicies(ctx, policyPaths); err != nil {
			return nil, engine.NewFatalError("failed to load policies", err).
				WithOp("policy").
				WithCode(engine.ErrCodePolicyDenied)
		}
	}
	return pe, nil
}

// checkPolicies evaluates the plan against every loaded policy not named in
// skip.
func checkPolicies(ctx context.Context, ws *config.Workspace, dc *config.DeployConfig, target string, src deploy.Paths, dst deploy.Destinations, commands, skip []string) error {
	pe, err := newPolicyEngine(ctx, ws)
	if err != nil {
		return err
	}
	for _, name := range skip {
		if err := pe.DisablePolicy(name); err != nil {
			return engine.NewFatalError("cannot skip policy", err).
				WithOp("policy").
				WithSubject(name)
		}
		log.Warn().Str("policy", name).Msg("Policy skipped")
	}

	input := policy.NewPlanInput(target, src, dst, commands)
	input.Host = dc.Host
	input.User = dc.User
	input.Method = dc.Method

	res, err := pe.EvaluatePlan(ctx, input)
	if err != nil {
		return engine.NewFatalError("failed to evaluate policies", err).WithOp("policy")
	}
	for _, w := range res.Warnings {
		log.Warn().Str("target", target).Msg(w)
	}

	blocking := res.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	for _, v := range blocking {
		log.Error().Str("policy", v.Policy).Str("file", v.File).Msg(v.Message)
	}
	first := blocking[0]
	cause := &deploy.Error{Kind: deploy.KindPolicy, File: first.File, Err: errors.New(first.Message)}
	return engine.NewFailFastError("deploy blocked by policy", cause).
		WithOp(string(deploy.KindPolicy)).
		WithSubject(first.Policy).
		WithCode(engine.ErrCodePolicyDenied)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// openSession connects to the device, or returns a dry-run session for the
// none method.
func openSession(ctx context.Context, dc *config.DeployConfig, logger zerolog.Logger) (deploy.Session, error) {
	if dc.Method == "none" {
		return deploy.NewNoopSession(logger), nil
	}

	sc := sshConfig(dc)
	ev := log.Debug().Str("address", sc.Address()).Str("auth", string(sc.AuthMethod))
	if sc.IsProxyEnabled() {
		ev = ev.Str("proxy", sc.ProxyAddress())
	}
	ev.Msg("Connecting")
	return deploy.Dial(ctx, sc, logger)
}

// sshConfig maps deploy settings onto the transport configuration.
// Passwords missing from the catalog are read from the environment.
func sshConfig(dc *config.DeployConfig) *ssh.Config {
	sc := ssh.DefaultConfig(dc.Host, dc.User)
	sc.Port = dc.Port
	sc.AuthMethod = ssh.AuthMethod(dc.Auth)
	sc.StrictHostKeyChecking = dc.StrictHostKey
	if dc.KnownHosts != "" {
		sc.KnownHostsPath = dc.KnownHosts
	}
	switch sc.AuthMethod {
	case ssh.AuthMethodPassword:
		sc.Password = dc.Password
		if sc.Password == "" {
			sc.Password = os.Getenv(EnvSSHPassword)
		}
	case ssh.AuthMethodKey:
		sc.PrivateKeyPath = dc.Identity
	}

	if p := dc.Proxy; p != nil {
		sc.ProxyHost = p.Host
		sc.ProxyPort = p.Port
		sc.ProxyUser = p.User
		sc.ProxyAuthMethod = ssh.AuthMethod(p.Auth)
		switch sc.ProxyAuthMethod {
		case ssh.AuthMethodPassword:
			sc.ProxyPassword = os.Getenv(EnvSSHProxyPassword)
		case ssh.AuthMethodKey:
			sc.ProxyPrivateKeyPath = p.Identity
		}
	}
	return sc
}

// openJournal opens the deploy journal. A journal that cannot be opened is
// reported and the deploy goes on without it.
func openJournal(ctx context.Context) *stores.SQLiteStore {
	path := journalFile()
	if err := paths.EnsureDir(path); err != nil {
		log.Warn().Err(err).Msg("Deploy journal disabled")
		return nil
	}
	store, err := stores.Open(ctx, filepath.Clean(path))
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Deploy journal disabled")
		return nil
	}
	if err := store.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Deploy journal disabled")
		_ = store.Close()
		return nil
	}
	return store
}

// progressObserver reports copied files in the labelled output format.
type progressObserver struct {
	logger zerolog.Logger
	level  profile.LogLevel
}

func (o progressObserver) StageChanged(stage deploy.Stage) {
	if o.level == profile.LogVerbose {
		o.logger.Info().Str("stage", string(stage)).Msg("Stage")
	}
}

func (o progressObserver) FileCopied(c deploy.Category, local, remote string) {
	if o.level == profile.LogOff {
		return
	}
	o.logger.Info().Str("file", local).Str("path", remote).Msg("Copied " + c.String())
}

func (o progressObserver) CommandFinished(cmd string, _ []byte, err error) {
	if o.level != profile.LogVerbose {
		return
	}
	ev := o.logger.Info()
	if err != nil {
		ev = o.logger.Error().Err(err)
	}
	ev.Str("value", cmd).Msg("Ran")
}

func (o progressObserver) Finished(*deploy.Result, error) {}
