package profile

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/condep/condep/pkg/env"
)

// Reporter observes the steps of a resolution.
type Reporter interface {
	Dumped(path string, vars map[string]string)
	DumpFailed(path string, err error)
	Resolved(pair env.Pair, action env.MergeAction)
	Unresolved(key string, set env.CandidateSet)
	Linked(link Link)
	LinkFailed(err *LinkError)
}

// Labels used for the pretty report lines.
const (
	LabelSetting     = "Setting env"
	LabelAdding      = "Adding env"
	LabelEnvFailed   = "Env failed"
	LabelEnvDumped   = "Env dumped"
	LabelDumpFailed  = "Dump failed"
	LabelLinkCreated = "Link created"
	LabelLinkFailed  = "Link failed"
)

type logReporter struct {
	log   zerolog.Logger
	level LogLevel
}

// NewLogReporter reports through logger, filtered by level.
func NewLogReporter(logger zerolog.Logger, level LogLevel) Reporter {
	return &logReporter{log: logger, level: level}
}

func (r *logReporter) Dumped(path string, vars map[string]string) {
	if r.level < LogPretty {
		return
	}
	r.log.Info().Str("file", path).Int("vars", len(vars)).Msg(LabelEnvDumped)
	if r.level < LogVerbose {
		return
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.log.Info().Str("key", k).Str("value", vars[k]).Msg(LabelSetting)
	}
}

func (r *logReporter) DumpFailed(path string, err error) {
	if r.level < LogPretty {
		return
	}
	r.log.Error().Err(err).Str("file", path).Msg(LabelDumpFailed)
}

func (r *logReporter) Resolved(pair env.Pair, action env.MergeAction) {
	if r.level < LogPretty {
		return
	}
	label := LabelSetting
	if action == env.Append {
		label = LabelAdding
	}
	r.log.Info().Str("key", pair.Key).Str("value", pair.Value).Msg(label)
}

func (r *logReporter) Unresolved(key string, set env.CandidateSet) {
	if r.level < LogPretty {
		return
	}
	ev := r.log.Warn().Str("key", key)
	if r.level >= LogVerbose {
		candidates := make([]string, len(set.Candidates))
		for i, c := range set.Candidates {
			candidates[i] = c.String()
		}
		ev = ev.Strs("candidates", candidates)
	}
	ev.Msg(LabelEnvFailed)
}

func (r *logReporter) Linked(link Link) {
	if r.level < LogPretty {
		return
	}
	r.log.Info().Str("source", link.Source).Str("path", link.Path).Msg(LabelLinkCreated)
}

func (r *logReporter) LinkFailed(err *LinkError) {
	if r.level < LogPretty {
		return
	}
	r.log.Warn().Err(err.Err).Str("link", err.Spec.Value).Msg(LabelLinkFailed)
}

// MultiReporter fans every event out to each reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Dumped(path string, vars map[string]string) {
	for _, r := range m {
		r.Dumped(path, vars)
	}
}

func (m MultiReporter) DumpFailed(path string, err error) {
	for _, r := range m {
		r.DumpFailed(path, err)
	}
}

func (m MultiReporter) Resolved(pair env.Pair, action env.MergeAction) {
	for _, r := range m {
		r.Resolved(pair, action)
	}
}

func (m MultiReporter) Unresolved(key string, set env.CandidateSet) {
	for _, r := range m {
		r.Unresolved(key, set)
	}
}

func (m MultiReporter) Linked(link Link) {
	for _, r := range m {
		r.Linked(link)
	}
}

func (m MultiReporter) LinkFailed(err *LinkError) {
	for _, r := range m {
		r.LinkFailed(err)
	}
}
