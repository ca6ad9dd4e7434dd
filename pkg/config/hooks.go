package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/condep/condep/pkg/deploy"
)

// HookEvaluator runs post-deploy Starlark hooks. A hook reads its input
// from predeclared globals and leaves the commands to run in a global list
// named "commands".
type HookEvaluator struct {
	timeout time.Duration
}

// NewHookEvaluator creates an evaluator. A zero timeout means 30 seconds.
func NewHookEvaluator(timeout time.Duration) *HookEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HookEvaluator{timeout: timeout}
}

// Commands executes script with input predeclared and returns its
// "commands" global. A script that does not define it yields no commands.
func (h *HookEvaluator) Commands(ctx context.Context, filename, script string, input map[string]interface{}) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "hook",
		Print: func(_ *starlark.Thread, msg string) {
			log.Debug().Str("hook", filename).Msg(msg)
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"quote":  starlark.NewBuiltin("quote", builtinQuote),
	}
	for key, val := range input {
		sv, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = sv
	}

	type result struct {
		globals starlark.StringDict
		err     error
	}
	done := make(chan result, 1)
	go func() {
		globals, err := starlark.ExecFile(thread, filename, script, predeclared)
		done <- result{globals, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		thread.Cancel(ctx.Err().Error())
		res = <-done
		if res.err == nil {
			res.err = ctx.Err()
		}
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("hook %s failed: %w", filename, res.err)
	}

	return commandsGlobal(filename, res.globals)
}

// CommandsFile reads and runs the hook script at path.
func (h *HookEvaluator) CommandsFile(ctx context.Context, path string, input map[string]interface{}) ([]string, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hook: %w", err)
	}
	return h.Commands(ctx, path, string(script), input)
}

// Hook adapts the script at path to the deploy pipeline. The script sees
// the target, the remote paths of every category, and vars.
func (h *HookEvaluator) Hook(path string, vars map[string]string) deploy.HookFunc {
	return func(ctx context.Context, in deploy.HookInput) ([]string, error) {
		return h.CommandsFile(ctx, path, HookInput(in, vars))
	}
}

// HookInput builds the predeclared globals of a deploy hook.
func HookInput(in deploy.HookInput, vars map[string]string) map[string]interface{} {
	input := map[string]interface{}{
		"target": in.Target,
	}
	for _, c := range deploy.Categories {
		input[c.String()] = in.Copied.Get(c)
	}
	v := make(map[string]interface{}, len(vars))
	for key, val := range vars {
		v[key] = val
	}
	input["vars"] = v
	return input
}

func commandsGlobal(filename string, globals starlark.StringDict) ([]string, error) {
	val, ok := globals["commands"]
	if !ok {
		return nil, nil
	}
	list, ok := val.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("hook %s: commands must be a list, got %s", filename, val.Type())
	}
	cmds := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("hook %s: commands[%d] must be a string, got %s", filename, i, list.Index(i).Type())
		}
		cmds = append(cmds, s)
	}
	return cmds, nil
}

func builtinQuote(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(deploy.ShellQuote(s)), nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		// Sorted so scripts iterating a dict see a stable order.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
