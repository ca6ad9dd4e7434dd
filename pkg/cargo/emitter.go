package cargo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/condep/condep/pkg/profile"
)

// SearchPathFlag prefixes every library search path in build.rustflags.
const SearchPathFlag = "-L"

// DefaultRunner is recorded as the host target's runner so that running a
// host build goes back through condep with the resolved library path.
const DefaultRunner = "condep run"

// Emitter turns a resolution into a configuration artifact.
type Emitter struct {
	// Jobs is the build parallelism. Zero means the number of CPUs.
	Jobs int
	// HostTriple looks up the host target when no target was requested.
	HostTriple func(ctx context.Context) (string, error)
	// Alias is carried into the artifact unchanged.
	Alias map[string]string
	// Runner is the host runner command. Empty means DefaultRunner.
	Runner string
}

// Emit builds the artifact for res. With a target, the target is recorded as
// the build target and receives the linker. Without one, the host triple
// receives the runner instead.
func (e *Emitter) Emit(ctx context.Context, target string, res *profile.Resolution) (*Config, error) {
	jobs := e.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	cfg := &Config{
		Alias: e.Alias,
		Build: Build{
			Jobs:      jobs,
			Target:    target,
			Rustflags: Rustflags(res.SearchPaths),
		},
		Env: make(map[string]string, len(res.Pairs)),
	}
	for _, p := range res.Pairs {
		cfg.Env[p.Key] = p.Value
	}

	if target != "" {
		if res.HasLinker {
			cfg.SetTargetValue(target, KeyLinker, res.Linker)
		}
		return cfg, nil
	}

	hostTriple := e.HostTriple
	if hostTriple == nil {
		hostTriple = HostTriple
	}
	host, err := hostTriple(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine host target: %w", err)
	}
	runner := e.Runner
	if runner == "" {
		runner = DefaultRunner
	}
	cfg.SetTargetValue(host, KeyRunner, runner)
	return cfg, nil
}

// Rustflags expands search paths into flag/value pairs.
func Rustflags(paths []string) []string {
	flags := make([]string, 0, 2*len(paths))
	for _, p := range paths {
		flags = append(flags, SearchPathFlag, p)
	}
	return flags
}
