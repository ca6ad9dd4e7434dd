package deploy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/condep/condep/pkg/engine"
)

var tracer = otel.Tracer("github.com/condep/condep/pkg/deploy")

// Stage is a step of a deploy. A deploy walks
// Connected → PrivilegeRemount → CopyLoop → PostCopyCommands → Done and jumps
// to Failed from any step.
type Stage string

const (
	StageConnected        Stage = "connected"
	StagePrivilegeRemount Stage = "privilege_remount"
	StageCopyLoop         Stage = "copy_loop"
	StagePostCopyCommands Stage = "post_copy_commands"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Observer is notified as a deploy progresses.
type Observer interface {
	StageChanged(stage Stage)
	FileCopied(c Category, local, remote string)
	CommandFinished(cmd string, output []byte, err error)
	Finished(result *Result, err error)
}

// HookInput is what a post-copy hook sees.
type HookInput struct {
	Target string
	Copied Paths
}

// HookFunc returns extra commands to run after the built-in post-copy ones.
type HookFunc func(ctx context.Context, in HookInput) ([]string, error)

// CommandOutput is the captured standard output of one remote command.
type CommandOutput struct {
	Command string
	Output  []byte
}

// Result describes a finished or failed deploy.
type Result struct {
	Target string
	Stage  Stage
	// FailedStage is the stage that was running when the deploy failed.
	FailedStage Stage
	Copied     Paths
	Outputs    []CommandOutput
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the deploy.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Pipeline runs one deploy over an open session.
type Pipeline struct {
	Session Session

	// Remount is run before copying, typically to make the root
	// filesystem writable. Empty skips the stage's command.
	Remount string

	// Commands run after the executables were marked executable.
	Commands []string

	// Hook, when set, contributes commands after Commands.
	Hook HookFunc

	Observers []Observer
	Logger    zerolog.Logger
}

// Run deploys src into dst. On failure the returned result holds the stage
// that failed and whatever was copied before it.
func (p *Pipeline) Run(ctx context.Context, target string, src Paths, dst Destinations) (*Result, error) {
	ctx, span := tracer.Start(ctx, "deploy")
	defer span.End()
	span.SetAttributes(
		attribute.String("condep.target", target),
		attribute.Int("condep.files", src.Len()),
	)

	result := &Result{Target: target, StartedAt: time.Now()}
	p.enter(result, StageConnected)

	err := p.run(ctx, result, src, dst)
	result.FinishedAt = time.Now()
	if err != nil {
		result.FailedStage = result.Stage
		p.enter(result, StageFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		kind := failedKind(err)
		err = engine.NewFailFastError("deploy failed", err).
			WithOp(string(kind)).
			WithSubject(target).
			WithCode(kind.code())
	} else {
		p.enter(result, StageDone)
	}
	span.SetAttributes(attribute.String("condep.stage", string(result.Stage)))

	for _, o := range p.Observers {
		o.Finished(result, err)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, result *Result, src Paths, dst Destinations) error {
	p.enter(result, StagePrivilegeRemount)
	if p.Remount != "" {
		if err := p.call(ctx, result, p.Remount); err != nil {
			return err
		}
	}

	p.enter(result, StageCopyLoop)
	copied, err := p.copy(ctx, src, dst)
	result.Copied = copied
	if err != nil {
		return err
	}

	p.enter(result, StagePostCopyCommands)
	commands, err := p.postCopyCommands(ctx, result)
	if err != nil {
		return err
	}
	for _, cmd := range commands {
		if err := p.call(ctx, result, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) copy(ctx context.Context, src Paths, dst Destinations) (Paths, error) {
	ctx, span := tracer.Start(ctx, "deploy.copy")
	defer span.End()

	copied, err := p.Session.Deploy(ctx, src, dst)
	// Copies keep source order, so the i-th copied file of a category is
	// the i-th source file.
	for _, c := range Categories {
		locals := src.Get(c)
		for i, remote := range copied.Get(c) {
			for _, o := range p.Observers {
				o.FileCopied(c, locals[i], remote)
			}
		}
	}
	span.SetAttributes(attribute.Int("condep.copied", copied.Len()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return copied, err
}

// postCopyCommands lists chmod for every copied executable, then the
// configured commands, then the hook's commands.
func (p *Pipeline) postCopyCommands(ctx context.Context, result *Result) ([]string, error) {
	var commands []string
	for _, exe := range result.Copied.Executables {
		commands = append(commands, ChmodCommand(exe))
	}
	commands = append(commands, p.Commands...)

	if p.Hook != nil {
		extra, err := p.Hook(ctx, HookInput{Target: result.Target, Copied: result.Copied})
		if err != nil {
			return nil, &Error{Kind: KindRemoteCommand, File: "hook", Err: err}
		}
		commands = append(commands, extra...)
	}
	return commands, nil
}

func (p *Pipeline) call(ctx context.Context, result *Result, cmd string) error {
	ctx, span := tracer.Start(ctx, "deploy.command")
	defer span.End()
	span.SetAttributes(attribute.String("condep.command", cmd))

	out, err := p.Session.CallRemote(ctx, []byte(cmd))
	for _, o := range p.Observers {
		o.CommandFinished(cmd, out, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	result.Outputs = append(result.Outputs, CommandOutput{Command: cmd, Output: out})
	return nil
}

func (p *Pipeline) enter(result *Result, stage Stage) {
	result.Stage = stage
	p.Logger.Debug().Str("stage", string(stage)).Msg("deploy stage")
	for _, o := range p.Observers {
		o.StageChanged(stage)
	}
}

// ChmodCommand marks a remote file executable.
func ChmodCommand(remote string) string {
	return "chmod +x " + ShellQuote(remote)
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func failedKind(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindRemoteCommand
}
