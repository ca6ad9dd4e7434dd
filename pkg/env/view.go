package env

import (
	"os"
	"sort"
	"strings"
)

// Mutation records a single write performed through a View.
type Mutation struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Previous string `json:"previous,omitempty"`
	HadValue bool   `json:"had_value"`
	Source   string `json:"source,omitempty"`
}

// View is an explicit environment mapping that later reads observe after
// earlier writes. It is not safe for concurrent use.
type View struct {
	vars map[string]string
	log  []Mutation
}

// NewView creates a view seeded with vars. The map is copied.
func NewView(vars map[string]string) *View {
	v := &View{vars: make(map[string]string, len(vars))}
	for k, val := range vars {
		v.vars[k] = val
	}
	return v
}

// FromEnviron creates a view from KEY=VALUE entries. Entries without '=' are ignored.
func FromEnviron(environ []string) *View {
	v := &View{vars: make(map[string]string, len(environ))}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		v.vars[key] = value
	}
	return v
}

// FromProcess creates a view from the current process environment.
func FromProcess() *View {
	return FromEnviron(os.Environ())
}

// Lookup returns the value of key and whether it is set.
func (v *View) Lookup(key string) (string, bool) {
	val, ok := v.vars[key]
	return val, ok
}

// Set writes key and records the mutation under source.
func (v *View) Set(key, value, source string) {
	prev, had := v.vars[key]
	v.vars[key] = value
	v.log = append(v.log, Mutation{
		Key:      key,
		Value:    value,
		Previous: prev,
		HadValue: had,
		Source:   source,
	})
}

// Merge overwrites the view with vars in key order.
func (v *View) Merge(vars map[string]string, source string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, vars[k], source)
	}
}

// Expand expands s against the view.
func (v *View) Expand(s EnvString) string {
	return s.Expand(v.Lookup)
}

// Mutations returns a copy of the mutation log.
func (v *View) Mutations() []Mutation {
	out := make([]Mutation, len(v.log))
	copy(out, v.log)
	return out
}

// Snapshot returns a copy of the current mapping.
func (v *View) Snapshot() map[string]string {
	out := make(map[string]string, len(v.vars))
	for k, val := range v.vars {
		out[k] = val
	}
	return out
}

// Environ returns the mapping as sorted KEY=VALUE entries, suitable for exec.Cmd.Env.
func (v *View) Environ() []string {
	out := make([]string, 0, len(v.vars))
	for k, val := range v.vars {
		out = append(out, k+"="+val)
	}
	sort.Strings(out)
	return out
}
