package cargo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/env"
	"github.com/condep/condep/pkg/profile"
)

func TestEmitWithTarget(t *testing.T) {
	res := &profile.Resolution{
		Pairs:       []env.Pair{{Key: "CC", Value: "/sdk/bin/gcc"}, {Key: "QT_LIBRARY_PATH", Value: "/sdk/qt/lib"}},
		Linker:      "/sdk/bin/g++",
		HasLinker:   true,
		SearchPaths: []string{"/sdk/lib", "/sdk/usr/lib"},
	}

	e := &Emitter{Jobs: 4, HostTriple: func(context.Context) (string, error) {
		t.Fatal("host triple must not be queried when a target is given")
		return "", nil
	}}
	cfg, err := e.Emit(context.Background(), "armv7-unknown-linux-gnueabi", res)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if cfg.Build.Jobs != 4 || cfg.Build.Target != "armv7-unknown-linux-gnueabi" {
		t.Errorf("build = %+v", cfg.Build)
	}
	wantFlags := []string{"-L", "/sdk/lib", "-L", "/sdk/usr/lib"}
	if strings.Join(cfg.Build.Rustflags, " ") != strings.Join(wantFlags, " ") {
		t.Errorf("rustflags = %v, want %v", cfg.Build.Rustflags, wantFlags)
	}
	if cfg.Env["CC"] != "/sdk/bin/gcc" || len(cfg.Env) != 2 {
		t.Errorf("env = %v", cfg.Env)
	}
	if linker, ok := cfg.TargetValue("armv7-unknown-linux-gnueabi", KeyLinker); !ok || linker != "/sdk/bin/g++" {
		t.Errorf("linker = %q, %v", linker, ok)
	}
	if _, ok := cfg.TargetValue("armv7-unknown-linux-gnueabi", KeyRunner); ok {
		t.Error("runner must only be set for host builds")
	}
}

func TestEmitWithoutLinkerOmitsTargetTable(t *testing.T) {
	cfg, err := (&Emitter{Jobs: 1}).Emit(context.Background(), "aarch64-unknown-linux-gnu", &profile.Resolution{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Target) != 0 {
		t.Errorf("target tables = %v, want none", cfg.Target)
	}
}

func TestEmitHostBuild(t *testing.T) {
	e := &Emitter{
		Jobs:       2,
		HostTriple: func(context.Context) (string, error) { return "x86_64-unknown-linux-gnu", nil },
		Alias:      map[string]string{"b": "build"},
	}
	res := &profile.Resolution{Linker: "/usr/bin/cc", HasLinker: true}

	cfg, err := e.Emit(context.Background(), "", res)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Build.Target != "" {
		t.Errorf("build.target = %q, want empty", cfg.Build.Target)
	}
	if runner, ok := cfg.TargetValue("x86_64-unknown-linux-gnu", KeyRunner); !ok || runner != DefaultRunner {
		t.Errorf("runner = %q, %v", runner, ok)
	}
	if _, ok := cfg.TargetValue("x86_64-unknown-linux-gnu", KeyLinker); ok {
		t.Error("host build must not record a linker")
	}
	if cfg.Alias["b"] != "build" {
		t.Errorf("alias = %v", cfg.Alias)
	}

	failing := &Emitter{HostTriple: func(context.Context) (string, error) { return "", ErrNoHostTriple }}
	if _, err := failing.Emit(context.Background(), "", res); !errors.Is(err, ErrNoHostTriple) {
		t.Errorf("err = %v, want ErrNoHostTriple", err)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	path := ConfigPath(t.TempDir())
	cfg := &Config{
		Build: Build{Jobs: 8, Target: "armv7-unknown-linux-gnueabi", Rustflags: Rustflags([]string{"/sdk/lib"})},
		Env:   map[string]string{"LD_LIBRARY_PATH": "/sdk/qt/lib"},
	}
	cfg.SetTargetValue("armv7-unknown-linux-gnueabi", KeyLinker, "/sdk/bin/g++")

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[build]", "jobs = 8", "[env]", "LD_LIBRARY_PATH", "linker"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("artifact missing %q:\n%s", want, data)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Env["LD_LIBRARY_PATH"] != "/sdk/qt/lib" {
		t.Errorf("env = %v", loaded.Env)
	}
	if linker, _ := loaded.TargetValue("armv7-unknown-linux-gnueabi", KeyLinker); linker != "/sdk/bin/g++" {
		t.Errorf("linker = %q", linker)
	}
	if paths := loaded.SearchPaths(); len(paths) != 1 || paths[0] != "/sdk/lib" {
		t.Errorf("SearchPaths() = %v", paths)
	}
}

func TestLoadOrEmpty(t *testing.T) {
	cfg, err := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil || cfg == nil {
		t.Fatalf("LoadOrEmpty() = %v, %v", cfg, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[build\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrEmpty(bad); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseVersionInfo(t *testing.T) {
	out := []byte(`rustc 1.82.0 (f6e511eec 2024-10-15)
binary: rustc
commit-hash: f6e511eec7342f59a25f7c0534f1dbea00d01b14
host: x86_64-unknown-linux-gnu
release: 1.82.0
LLVM version: 19.1.1
`)
	info := ParseVersionInfo(out)
	if info["host"] != "x86_64-unknown-linux-gnu" {
		t.Errorf("host = %q", info["host"])
	}
	if info["LLVM version"] != "19.1.1" {
		t.Errorf("LLVM version = %q", info["LLVM version"])
	}
	if _, ok := info["rustc 1.82.0 (f6e511eec 2024-10-15)"]; ok {
		t.Error("banner line should be skipped")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	content := "[package]\nname = \"reader\"\nversion = \"0.3.1\"\n\n[dependencies]\nqt = \"1\"\n"
	if err := os.WriteFile(ManifestPath(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(ManifestPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if m.Package.Name != "reader" || m.Package.Version != "0.3.1" {
		t.Errorf("manifest = %+v", m)
	}

	if err := os.WriteFile(ManifestPath(dir), []byte("[workspace]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(ManifestPath(dir)); err == nil {
		t.Error("expected an error without package.name")
	}
}

func TestLocateArtifact(t *testing.T) {
	write := func(t *testing.T, path string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F'}, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("release preferred", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, "target", "armv7-unknown-linux-gnueabi", "debug", "reader"))
		write(t, filepath.Join(root, "target", "armv7-unknown-linux-gnueabi", "release", "reader"))
		got, err := LocateArtifact(root, "armv7-unknown-linux-gnueabi", "reader")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(got, "release") {
			t.Errorf("got %q, want the release build", got)
		}
	})

	t.Run("debug fallback without target", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, "target", "debug", "reader"))
		got, err := LocateArtifact(root, "", "reader")
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(root, "target", "debug", "reader") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("restricted to debug", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, "target", "debug", "reader"))
		write(t, filepath.Join(root, "target", "release", "reader"))
		got, err := LocateArtifactIn(root, "", "reader", "debug")
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(root, "target", "debug", "reader") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("missing is fatal", func(t *testing.T) {
		_, err := LocateArtifact(t.TempDir(), "", "reader")
		if !errors.Is(err, ErrArtifactNotFound) || !engine.IsFatal(err) {
			t.Errorf("err = %v", err)
		}
	})
}
