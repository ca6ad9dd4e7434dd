package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"

	"github.com/condep/condep/pkg/env"
	"github.com/condep/condep/pkg/profile"
)

// Loader reads CUE catalogs. A Loader is not safe for concurrent use.
type Loader struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewLoader creates a loader with the built-in catalog schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(catalogSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	return &Loader{
		ctx:       ctx,
		schema:    schema.LookupPath(cue.ParsePath("#Catalog")),
		validator: validator.New(),
	}, nil
}

// LoadFile reads and validates the catalog at path. Relative policy and
// hook paths are resolved against the catalog's directory.
func (l *Loader) LoadFile(path string) (*Workspace, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	ws, err := l.Parse(path, src)
	if err != nil {
		return nil, err
	}
	ws.resolvePaths(filepath.Dir(path))
	return ws, nil
}

// Parse validates src against the schema and builds a workspace from it.
// filename is only used in error positions.
func (l *Loader) Parse(filename string, src []byte) (*Workspace, error) {
	val := l.ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, &ParseError{Errors: convertCUEErrors(err)}
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &ParseError{Errors: convertCUEErrors(err)}
	}

	var doc catalogDoc
	if err := unified.Decode(&doc); err != nil {
		return nil, &ParseError{Errors: convertCUEErrors(err)}
	}
	if err := l.validator.Struct(doc); err != nil {
		return nil, &ParseError{Errors: convertValidatorErrors(filename, err)}
	}

	return doc.workspace(filename)
}

func (d *catalogDoc) workspace(source string) (*Workspace, error) {
	ws := &Workspace{
		Source:   source,
		Deploy:   d.Deploy,
		Policies: d.Policies,
		Catalog: &profile.Catalog{
			Targets: make(map[string]*profile.TargetProfile, len(d.Targets)),
		},
	}
	if ws.Deploy == nil {
		ws.Deploy = make(map[string]*DeployConfig)
	}

	for name, p := range d.Targets {
		tp, err := p.profile()
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", name, err)
		}
		ws.Catalog.Targets[name] = tp
	}

	def, err := d.Default.profile()
	if err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	ws.Catalog.Default = def

	return ws, nil
}

func (p profileDoc) profile() (*profile.TargetProfile, error) {
	tp := &profile.TargetProfile{
		Sources:   env.Strings(p.Sources...),
		LinkPaths: env.Strings(p.LinkPaths...),
	}

	for _, pair := range p.Env {
		action, err := env.ParseMergeAction(pair.Action)
		if err != nil {
			return nil, err
		}
		tp.Env = append(tp.Env, profile.EnvPair{
			Key: pair.Key,
			Value: env.CandidateSet{
				Candidates: env.Strings(pair.Candidates...),
				Action:     action,
			},
		})
	}

	for _, link := range p.Links {
		kind, err := profile.ParseLinkKind(link.Kind)
		if err != nil {
			return nil, err
		}
		tp.Links = append(tp.Links, profile.LinkSpec{Kind: kind, Value: link.Value})
	}

	if p.Linker != nil {
		linker := env.EnvString(*p.Linker)
		tp.Linker = &linker
	}

	return tp, nil
}

func (w *Workspace) resolvePaths(dir string) {
	for i, p := range w.Policies {
		w.Policies[i] = resolvePath(dir, p)
	}
	for _, d := range w.Deploy {
		if d.Hook != "" {
			d.Hook = resolvePath(dir, d.Hook)
		}
	}
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "$") {
		return p
	}
	return filepath.Join(dir, p)
}

// convertCUEErrors flattens a CUE error into positioned messages.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}

func convertValidatorErrors(file string, err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{File: file, Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			File:    file,
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
		})
	}
	return out
}
