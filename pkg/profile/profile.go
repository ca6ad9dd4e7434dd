// Package profile describes cross-compilation target profiles and resolves
// them into concrete environment variables, links and linker settings.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/env"
)

var tracer = otel.Tracer("github.com/condep/condep/pkg/profile")

// ErrUndefinedTarget is returned when a requested target has no profile.
var ErrUndefinedTarget = errors.New("undefined target")

// EnvPair binds a variable name to its candidate values.
type EnvPair struct {
	Key   string
	Value env.CandidateSet
}

// TargetProfile is the full recipe for one target.
type TargetProfile struct {
	// Env is resolved in order; later entries see earlier results.
	Env []EnvPair
	// Sources are shell scripts whose resulting environment is merged first.
	Sources []env.EnvString
	// Links are created in the working directory after Env is resolved.
	Links []LinkSpec
	// Linker is the optional linker template.
	Linker *env.EnvString
	// LinkPaths are extra library search paths for the linker.
	LinkPaths []env.EnvString
}

// Catalog maps target identifiers to profiles.
type Catalog struct {
	Targets map[string]*TargetProfile
	Default *TargetProfile
}

// Select returns the profile for target. An empty target selects the default
// profile. A non-empty target without a profile returns false.
func (c *Catalog) Select(target string) (*TargetProfile, bool) {
	if target == "" {
		return c.Default, c.Default != nil
	}
	p, ok := c.Targets[target]
	return p, ok && p != nil
}

// TargetNames returns the defined target identifiers in sorted order.
func (c *Catalog) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolution is the outcome of resolving a profile.
type Resolution struct {
	Pairs        []env.Pair
	Linker       string
	HasLinker    bool
	SearchPaths  []string
	Links        []Link
	Unresolved   []string
	LinkFailures []*LinkError
}

// Dumper harvests the environment produced by sourcing a script in a shell
// started with environ.
type Dumper interface {
	Dump(ctx context.Context, script string, environ []string) (map[string]string, error)
}

// Resolver runs the resolution pipeline for a profile.
type Resolver struct {
	// Predicate accepts candidates. Nil means env.PathExists.
	Predicate env.Predicate
	// Dumper sources dump files. Nil means env.Dumper with the default shell.
	Dumper Dumper
	// Symlink creates links. Nil means os.Symlink.
	Symlink SymlinkFunc
	// WorkDir receives the links. Empty means the current directory.
	WorkDir string
	// Reporter observes each step. Nil reports nothing.
	Reporter Reporter
}

// Resolve applies p to v in four ordered steps: dump files are sourced and
// merged, env pairs are resolved in order, links are created, and the linker
// and search paths are expanded. Only a failing dump file aborts the pipeline.
func (r *Resolver) Resolve(ctx context.Context, p *TargetProfile, v *env.View) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "profile.resolve")
	defer span.End()

	reporter := r.Reporter
	if reporter == nil {
		reporter = MultiReporter(nil)
	}

	if err := r.applyDumps(ctx, p.Sources, v, reporter); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dump failed")
		return nil, err
	}

	res := &Resolution{}
	for _, pair := range p.Env {
		resolved, ok := pair.Value.Resolve(v, pair.Key, r.Predicate)
		if !ok {
			res.Unresolved = append(res.Unresolved, pair.Key)
			reporter.Unresolved(pair.Key, pair.Value)
			continue
		}
		res.Pairs = append(res.Pairs, resolved)
		reporter.Resolved(resolved, pair.Value.Action)
	}

	if len(p.Links) > 0 {
		if err := r.createLinks(p.Links, v, res, reporter); err != nil {
			return nil, err
		}
	}

	if p.Linker != nil {
		res.Linker = v.Expand(*p.Linker)
		res.HasLinker = true
	}
	for _, lp := range p.LinkPaths {
		res.SearchPaths = append(res.SearchPaths, v.Expand(lp))
	}

	span.SetAttributes(
		attribute.Int("condep.pairs", len(res.Pairs)),
		attribute.Int("condep.unresolved", len(res.Unresolved)),
		attribute.Int("condep.links", len(res.Links)),
		attribute.Int("condep.link_failures", len(res.LinkFailures)),
	)
	return res, nil
}

func (r *Resolver) applyDumps(ctx context.Context, sources []env.EnvString, v *env.View, reporter Reporter) error {
	dumper := r.Dumper
	if dumper == nil {
		dumper = env.Dumper{}
	}

	for _, src := range sources {
		path, err := src.Path(v.Lookup)
		if err != nil {
			reporter.DumpFailed(src.String(), err)
			return engine.NewFatalError("failed to locate dump file", err).
				WithOp("dump").
				WithSubject(src.String()).
				WithCode(engine.ErrCodeDumpFailed)
		}

		_, span := tracer.Start(ctx, "profile.dump")
		span.SetAttributes(attribute.String("condep.dump_file", path))
		// Each dump starts from the view, so it sees what earlier dumps exported.
		vars, err := dumper.Dump(ctx, path, v.Environ())
		if err != nil {
			span.RecordError(err)
			span.End()
			reporter.DumpFailed(path, err)
			return engine.NewFatalError("failed to source dump file", err).
				WithOp("dump").
				WithSubject(path).
				WithCode(engine.ErrCodeDumpFailed)
		}
		span.End()

		v.Merge(vars, path)
		reporter.Dumped(path, vars)
	}
	return nil
}

func (r *Resolver) createLinks(specs []LinkSpec, v *env.View, res *Resolution, reporter Reporter) error {
	dir, err := r.workDir()
	if err != nil {
		return engine.NewFatalError("failed to determine working directory", err).WithOp("link")
	}
	for _, spec := range specs {
		link, err := spec.LinkInto(v, dir, r.Symlink)
		if err != nil {
			var linkErr *LinkError
			if !errors.As(err, &linkErr) {
				linkErr = &LinkError{Spec: spec, Err: err}
			}
			res.LinkFailures = append(res.LinkFailures, linkErr)
			reporter.LinkFailed(linkErr)
			continue
		}
		res.Links = append(res.Links, link)
		reporter.Linked(link)
	}
	return nil
}

func (r *Resolver) workDir() (string, error) {
	if r.WorkDir != "" {
		return r.WorkDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return dir, nil
}
