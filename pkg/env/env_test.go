package env

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	vars := map[string]string{
		"SDK":  "/opt/sdk",
		"AAA":  "a",
		"BBB":  "b",
		"LOOP": "$LOOP",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "$SDK/bin", "/opt/sdk/bin"},
		{"adjacent tokens", "$AAA$BBB", "ab"},
		{"unresolved kept", "$MISSING/x", "$MISSING/x"},
		{"not recursive", "$LOOP", "$LOOP"},
		{"maximal name", "$AAAB", "$AAAB"},
		{"digit cannot start a name", "$1abc", "$1abc"},
		{"underscore start", "$_X", "$_X"},
		{"no tokens", "/usr/bin", "/usr/bin"},
		{"dollar alone", "cost $ 5", "cost $ 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.in, mapLookup(vars)); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandIdempotentWithoutTokens(t *testing.T) {
	lookup := mapLookup(map[string]string{"A": "/x"})
	once := Expand("$A/bin", lookup)
	if twice := Expand(once, lookup); twice != once {
		t.Errorf("second expansion changed %q to %q", once, twice)
	}
}

func TestReferences(t *testing.T) {
	got := References("$TOOLCHAIN_PATH/$TOOLCHAIN_PREFIX/sysroot")
	if len(got) != 2 || got[0] != "TOOLCHAIN_PATH" || got[1] != "TOOLCHAIN_PREFIX" {
		t.Errorf("References() = %v", got)
	}
}

func TestEnvStringPath(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "realDir")
	if err := os.Mkdir(realDir, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(realDir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	lookup := mapLookup(map[string]string{"DIR": dir})
	got, err := EnvString("$DIR/link").Path(lookup)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(realDir)
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	if _, err := EnvString("$DIR/missing").Path(lookup); err == nil {
		t.Error("Path() should fail for a missing file")
	}
}

func TestViewMutations(t *testing.T) {
	v := FromEnviron([]string{"A=1", "B=two=2", "broken"})

	if got, ok := v.Lookup("B"); !ok || got != "two=2" {
		t.Errorf("Lookup(B) = %q, %v", got, ok)
	}
	if _, ok := v.Lookup("broken"); ok {
		t.Error("entries without '=' should be ignored")
	}

	v.Set("A", "10", "test")
	v.Set("C", "3", "test")

	muts := v.Mutations()
	if len(muts) != 2 {
		t.Fatalf("len(Mutations()) = %d, want 2", len(muts))
	}
	if !muts[0].HadValue || muts[0].Previous != "1" || muts[0].Value != "10" {
		t.Errorf("first mutation = %+v", muts[0])
	}
	if muts[1].HadValue {
		t.Errorf("second mutation should record a new key: %+v", muts[1])
	}

	environ := v.Environ()
	want := []string{"A=10", "B=two=2", "C=3"}
	if strings.Join(environ, ",") != strings.Join(want, ",") {
		t.Errorf("Environ() = %v, want %v", environ, want)
	}
}

func TestMergeActionApply(t *testing.T) {
	sep := string(os.PathListSeparator)

	tests := []struct {
		name         string
		action       MergeAction
		key          string
		initial      map[string]string
		value        string
		wantValue    string
		wantAppended bool
	}{
		{
			name:      "set overwrites",
			action:    Set,
			key:       "X",
			initial:   map[string]string{"X": "old"},
			value:     "new",
			wantValue: "new",
		},
		{
			name:         "append prepends",
			action:       Append,
			key:          "P",
			initial:      map[string]string{"P": "/a" + sep + "/b"},
			value:        "/c",
			wantValue:    "/c" + sep + "/a" + sep + "/b",
			wantAppended: true,
		},
		{
			// The silent fallback to Set is intentional.
			name:      "append on unset variable falls back to set",
			action:    Append,
			key:       "P",
			initial:   map[string]string{},
			value:     "/c",
			wantValue: "/c",
		},
		{
			// The silent fallback to Set is intentional.
			name:      "append of unjoinable value falls back to set",
			action:    Append,
			key:       "P",
			initial:   map[string]string{"P": "/a"},
			value:     "/c" + sep + "/d",
			wantValue: "/c" + sep + "/d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(tt.initial)
			got, appended := tt.action.Apply(v, tt.key, tt.value)
			if got != tt.wantValue {
				t.Errorf("Apply() value = %q, want %q", got, tt.wantValue)
			}
			if appended != tt.wantAppended {
				t.Errorf("Apply() appended = %v, want %v", appended, tt.wantAppended)
			}
			if cur, _ := v.Lookup(tt.key); cur != tt.wantValue {
				t.Errorf("view holds %q, want %q", cur, tt.wantValue)
			}
		})
	}
}

func TestParseMergeAction(t *testing.T) {
	for in, want := range map[string]MergeAction{"": Set, "set": Set, "Append": Append} {
		got, err := ParseMergeAction(in)
		if err != nil || got != want {
			t.Errorf("ParseMergeAction(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMergeAction("prepend"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestCandidateSetResolve(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "gcc")
	if err := os.WriteFile(present, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("first existing candidate wins", func(t *testing.T) {
		v := NewView(map[string]string{"SDK": dir})
		cs := CandidateSet{
			Candidates: Strings("$SDK/clang", "$SDK/gcc", "$SDK/cc"),
			Action:     Set,
		}
		pair, ok := cs.Resolve(v, "CC", nil)
		if !ok {
			t.Fatal("expected a resolution")
		}
		if pair.Key != "CC" || pair.Value != present {
			t.Errorf("pair = %+v", pair)
		}
		if got, _ := v.Lookup("CC"); got != present {
			t.Errorf("view CC = %q", got)
		}
	})

	t.Run("no candidate leaves view untouched", func(t *testing.T) {
		v := NewView(map[string]string{"SDK": dir})
		cs := OneStr("$SDK/missing", Set)
		if _, ok := cs.Resolve(v, "CC", nil); ok {
			t.Fatal("expected no resolution")
		}
		if _, ok := v.Lookup("CC"); ok {
			t.Error("CC should stay unset")
		}
		if len(v.Mutations()) != 0 {
			t.Error("no mutation expected")
		}
	})

	t.Run("custom predicate", func(t *testing.T) {
		v := NewView(nil)
		cs := CandidateSet{Candidates: Strings("a", "bb"), Action: Set}
		pair, ok := cs.Resolve(v, "K", func(s string) bool { return len(s) == 2 })
		if !ok || pair.Value != "bb" {
			t.Errorf("pair = %+v, ok = %v", pair, ok)
		}
	})

	t.Run("append returns effective value", func(t *testing.T) {
		sep := string(os.PathListSeparator)
		v := NewView(map[string]string{"LD_LIBRARY_PATH": "/usr/lib", "LIB": dir})
		pair, ok := OneStr("$LIB", Append).Resolve(v, "LD_LIBRARY_PATH", nil)
		if !ok {
			t.Fatal("expected a resolution")
		}
		if want := dir + sep + "/usr/lib"; pair.Value != want {
			t.Errorf("pair.Value = %q, want %q", pair.Value, want)
		}
	})
}

func TestParseEnvOutput(t *testing.T) {
	vars, err := ParseEnvOutput([]byte("A=1\nB=x=y\nnoise\nEMPTY=\n"))
	if err != nil {
		t.Fatal(err)
	}
	if vars["A"] != "1" || vars["B"] != "x=y" || len(vars) != 3 {
		t.Errorf("vars = %v", vars)
	}
	if v, ok := vars["EMPTY"]; !ok || v != "" {
		t.Errorf("EMPTY = %q, %v", v, ok)
	}

	if _, err := ParseEnvOutput([]byte{0xff, 0xfe, '=', 'x'}); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestDumperDump(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no POSIX shell")
	}
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not installed")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "env set.sh")
	content := "export TOOLCHAIN_PATH=/opt/toolchain\nexport TOOLCHAIN_PREFIX=arm-obreey-linux-gnueabi\n"
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d := Dumper{Shell: bash}
	environ := []string{"PATH=" + os.Getenv("PATH")}
	vars, err := d.Dump(context.Background(), script, environ)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if vars["TOOLCHAIN_PATH"] != "/opt/toolchain" {
		t.Errorf("TOOLCHAIN_PATH = %q", vars["TOOLCHAIN_PATH"])
	}
	if vars["TOOLCHAIN_PREFIX"] != "arm-obreey-linux-gnueabi" {
		t.Errorf("TOOLCHAIN_PREFIX = %q", vars["TOOLCHAIN_PREFIX"])
	}

	if _, err := d.Dump(context.Background(), filepath.Join(dir, "missing.sh"), environ); err == nil {
		t.Error("Dump() should fail for a missing script")
	}
}
