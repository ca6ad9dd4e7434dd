package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/condep/condep/pkg/deploy"
	"github.com/condep/condep/pkg/env"
	"github.com/condep/condep/pkg/profile"
	"github.com/condep/condep/pkg/telemetry"
)

// reportLogger writes the labelled resolution lines to w. Colors are only
// used when w is a terminal.
func reportLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:         w,
		NoColor:     !isTerminal(w),
		PartsOrder:  []string{zerolog.MessageFieldName},
		FieldsOrder: []string{"key", "value", "file", "source", "path", "link"},
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// metricsReporter counts resolution events.
type metricsReporter struct {
	m *telemetry.Metrics
}

var _ profile.Reporter = metricsReporter{}

func (r metricsReporter) Dumped(string, map[string]string) {
	r.m.RecordDump(true)
}

func (r metricsReporter) DumpFailed(string, error) {
	r.m.RecordDump(false)
}

func (r metricsReporter) Resolved(_ env.Pair, action env.MergeAction) {
	r.m.RecordEnvResolved(action.String())
}

func (r metricsReporter) Unresolved(string, env.CandidateSet) {
	r.m.RecordEnvUnresolved()
}

func (r metricsReporter) Linked(profile.Link) {
	r.m.RecordLink(true)
}

func (r metricsReporter) LinkFailed(*profile.LinkError) {
	r.m.RecordLink(false)
}

// metricsObserver counts deploy events.
type metricsObserver struct {
	m *telemetry.Metrics
}

var _ deploy.Observer = metricsObserver{}

func (o metricsObserver) StageChanged(deploy.Stage) {}

func (o metricsObserver) FileCopied(c deploy.Category, _, _ string) {
	o.m.RecordFileCopied(c.String())
}

func (o metricsObserver) CommandFinished(_ string, _ []byte, err error) {
	o.m.RecordRemoteCommand(err == nil)
}

func (o metricsObserver) Finished(result *deploy.Result, _ error) {
	o.m.RecordDeploy(string(result.Stage), result.Duration())
}

// outputObserver prints what remote commands wrote to their standard output.
type outputObserver struct {
	w io.Writer
}

func (o outputObserver) StageChanged(deploy.Stage) {}

func (o outputObserver) FileCopied(deploy.Category, string, string) {}

func (o outputObserver) Finished(*deploy.Result, error) {}

func (o outputObserver) CommandFinished(cmd string, output []byte, _ error) {
	if len(output) == 0 {
		return
	}
	fmt.Fprintf(o.w, "$ %s\n%s", cmd, output)
	if output[len(output)-1] != '\n' {
		fmt.Fprintln(o.w)
	}
}
