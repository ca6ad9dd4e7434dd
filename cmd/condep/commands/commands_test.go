package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/condep/condep/pkg/cargo"
	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/deploy"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/transports/ssh"
)

const testTarget = "thumbv7-test"

// testEnv isolates the XDG locations and returns a project directory with
// a manifest.
func testEnv(t *testing.T) (project string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONDEP_CATALOG", filepath.Join(dir, "config", "catalog.cue"))
	t.Setenv("CONDEP_JOURNAL", filepath.Join(dir, "state", "journal.db"))

	project = filepath.Join(dir, "project")
	writeFile(t, filepath.Join(project, "Cargo.toml"), "[package]\nname = \"reader\"\nversion = \"0.1.0\"\n")
	return project
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// writeCatalog writes a catalog whose SDK lives at sdk.
func writeCatalog(t *testing.T, sdk, userFiles string) string {
	t.Helper()
	src := fmt.Sprintf(`targets: %q: {
	env: [
		{key: "SDK_ROOT", candidates: ["/nonexistent/sdk", %q]},
		{key: "LIB_DIR", candidates: ["$SDK_ROOT/lib"]},
		{key: "MISSING", candidates: ["/nonexistent/missing"]},
	]
	linker: "$SDK_ROOT/bin/gcc"
	link_paths: ["$SDK_ROOT/lib"]
}

default: {}

deploy: default: {
	host: "127.0.0.1"
	destinations: {
		executables:  "/opt/app/bin"
		libraries:    "/opt/app/lib"
		config_files: "/opt/app/etc"
		user_files:   %q
	}
	libraries: ["$LIB_DIR/libfoo.so"]
	user_files: ["$LIB_DIR/notes.txt"]
	commands: ["sync"]
}
`, testTarget, sdk, userFiles)
	path := filepath.Join(t.TempDir(), "catalog.cue")
	writeFile(t, path, src)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand("test", "none", "unknown")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx := context.Background()
	err := finish(ctx, root.ExecuteContext(ctx))
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"exit error", &ExitError{Code: 3}, 3},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: 42}), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	project := testEnv(t)
	sdk := t.TempDir()
	writeFile(t, filepath.Join(sdk, "lib", "libfoo.so"), "")
	catalog := writeCatalog(t, sdk, "/opt/app/share")

	cfgPath := cargo.ConfigPath(project)
	existing := &cargo.Config{Alias: map[string]string{"b": "build"}}
	if err := existing.Save(cfgPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := execute(t, "configure", "--catalog", catalog, "-C", project, "--target", testTarget)
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if !strings.Contains(out, "Setting env") || !strings.Contains(out, "Env failed") {
		t.Errorf("expected report lines, got:\n%s", out)
	}

	cfg, err := cargo.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Build.Target != testTarget {
		t.Errorf("expected build target %s, got %q", testTarget, cfg.Build.Target)
	}
	if cfg.Env["SDK_ROOT"] != sdk {
		t.Errorf("expected SDK_ROOT %s, got %q", sdk, cfg.Env["SDK_ROOT"])
	}
	if want := filepath.Join(sdk, "lib"); cfg.Env["LIB_DIR"] != want {
		t.Errorf("expected LIB_DIR %s, got %q", want, cfg.Env["LIB_DIR"])
	}
	if _, ok := cfg.Env["MISSING"]; ok {
		t.Error("unresolved variable must not be written")
	}
	if linker, _ := cfg.TargetValue(testTarget, cargo.KeyLinker); linker != sdk+"/bin/gcc" {
		t.Errorf("unexpected linker %q", linker)
	}
	if got := cfg.SearchPaths(); len(got) != 1 || got[0] != sdk+"/lib" {
		t.Errorf("unexpected search paths %v", got)
	}
	if cfg.Alias["b"] != "build" {
		t.Errorf("alias not preserved: %v", cfg.Alias)
	}
}

func TestConfigureUndefinedTarget(t *testing.T) {
	project := testEnv(t)
	catalog := writeCatalog(t, t.TempDir(), "/opt/app/share")

	if _, err := execute(t, "configure", "--catalog", catalog, "-C", project, "--target", "mips-unknown"); err != nil {
		t.Fatalf("undefined target must not fail: %v", err)
	}
	if _, err := os.Stat(cargo.ConfigPath(project)); !os.IsNotExist(err) {
		t.Errorf("no configuration should be written, stat error: %v", err)
	}
}

func TestConfigureInvalidCatalog(t *testing.T) {
	project := testEnv(t)
	catalog := filepath.Join(t.TempDir(), "catalog.cue")
	writeFile(t, catalog, "targets: 42\n")

	_, err := execute(t, "configure", "--catalog", catalog, "-C", project)
	var classified *engine.Error
	if !errors.As(err, &classified) || classified.Code != engine.ErrCodeCatalogInvalid {
		t.Fatalf("expected a catalog error, got %v", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %d", ExitCode(err))
	}
}

// setupDeployProject writes a configured project with a release build.
func setupDeployProject(t *testing.T, project string) (libDir string) {
	t.Helper()
	libDir = t.TempDir()
	cfg := &cargo.Config{
		Build: cargo.Build{Jobs: 1, Target: testTarget},
		Env:   map[string]string{"LIB_DIR": libDir},
	}
	if err := cfg.Save(cargo.ConfigPath(project)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	writeFile(t, filepath.Join(project, "target", testTarget, "release", "reader"), "ELF")
	return libDir
}

func TestDeployDryRun(t *testing.T) {
	project := testEnv(t)
	catalog := writeCatalog(t, t.TempDir(), "/opt/app/share")
	libDir := setupDeployProject(t, project)

	out, err := execute(t, "deploy", "--catalog", catalog, "-C", project, "--method", "none")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	for _, want := range []string{"/opt/app/bin/reader", "/opt/app/lib/libfoo.so", "/opt/app/share/notes.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output:\n%s", want, out)
		}
	}

	out, err = execute(t, "history", "--files")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "succeeded") || !strings.Contains(out, testTarget) {
		t.Errorf("deployment not journaled:\n%s", out)
	}
	if !strings.Contains(out, filepath.Join(libDir, "libfoo.so")) {
		t.Errorf("copied files not journaled:\n%s", out)
	}
}

func TestDeployPolicyDenied(t *testing.T) {
	project := testEnv(t)
	catalog := writeCatalog(t, t.TempDir(), "/dev/shm")
	setupDeployProject(t, project)

	_, err := execute(t, "deploy", "--catalog", catalog, "-C", project, "--method", "none")
	var classified *engine.Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected a classified error, got %v", err)
	}
	if classified.Class != engine.ErrorClassFailFast || classified.Code != engine.ErrCodePolicyDenied {
		t.Errorf("unexpected error %s/%s", classified.Class, classified.Code)
	}
}

func TestDeploySkipPolicy(t *testing.T) {
	project := testEnv(t)
	catalog := writeCatalog(t, t.TempDir(), "/dev/shm")
	setupDeployProject(t, project)

	out, err := execute(t, "deploy", "--catalog", catalog, "-C", project, "--method", "none", "--skip-policy", "protected-paths")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	if !strings.Contains(out, "/dev/shm/notes.txt") {
		t.Errorf("expected /dev/shm/notes.txt in output:\n%s", out)
	}

	_, err = execute(t, "deploy", "--catalog", catalog, "-C", project, "--method", "none", "--skip-policy", "no-such-policy")
	var classified *engine.Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected a classified error, got %v", err)
	}
	if classified.Class != engine.ErrorClassFatal || classified.Subject != "no-such-policy" {
		t.Errorf("unexpected error %s/%s", classified.Class, classified.Subject)
	}
}

func TestPolicies(t *testing.T) {
	project := testEnv(t)
	rego := filepath.Join(filepath.Dir(project), "config", "policies", "no-tmp.rego")
	writeFile(t, rego, `# Nothing may be copied below /tmp
# severity: error
package condep.policies.notmp

import rego.v1

deny contains violation if {
	some file in input.files
	startswith(file.remote, "/tmp/")
	violation := {"message": "remote path is below /tmp", "file": file.local}
}
`)

	out, err := execute(t, "policies")
	if err != nil {
		t.Fatalf("policies failed: %v", err)
	}
	for _, want := range []string{"protected-paths", "built-in", "no-tmp", rego} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output:\n%s", want, out)
		}
	}

	out, err = execute(t, "policies", "--json")
	if err != nil {
		t.Fatalf("policies --json failed: %v", err)
	}
	var listed []struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	names := make([]string, 0, len(listed))
	for _, p := range listed {
		names = append(names, p.Name)
		if !p.Enabled {
			t.Errorf("policy %s listed as disabled", p.Name)
		}
	}
	if got := strings.Join(names, ","); got != "absolute-destinations,empty-plan,no-tmp,protected-paths" {
		t.Errorf("unexpected policies %s", got)
	}
}

func TestConnectError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		temporary bool
	}{
		{"unreachable", &deploy.Error{Kind: deploy.KindConnect, Err: &ssh.TransportError{Op: "connect", Err: errors.New("timeout"), IsTemporary: true}}, true},
		{"bad configuration", &deploy.Error{Kind: deploy.KindConnect, Err: &ssh.TransportError{Op: "connect", Err: errors.New("no key")}}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := connectError("10.0.0.2", tt.err)
			if err.Class != engine.ErrorClassFailFast || err.Code != engine.ErrCodeConnectFailed || err.Subject != "10.0.0.2" {
				t.Errorf("unexpected classification %s/%s/%s", err.Class, err.Code, err.Subject)
			}
			if got := strings.Contains(err.Message, "unreachable"); got != tt.temporary {
				t.Errorf("message %q, temporary=%v", err.Message, tt.temporary)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause not wrapped")
			}
		})
	}
}

func TestDeployMissingArtifact(t *testing.T) {
	project := testEnv(t)
	catalog := writeCatalog(t, t.TempDir(), "/opt/app/share")
	setupDeployProject(t, project)

	_, err := execute(t, "deploy", "--catalog", catalog, "-C", project, "--method", "none", "--debug")
	var classified *engine.Error
	if !errors.As(err, &classified) || classified.Code != engine.ErrCodeArtifactNotFound {
		t.Fatalf("expected ARTIFACT_NOT_FOUND, got %v", err)
	}
}

func TestDeployMissingConfiguration(t *testing.T) {
	project := testEnv(t)

	_, err := execute(t, "deploy", "-C", project, "--method", "none")
	var classified *engine.Error
	if !errors.As(err, &classified) || classified.Code != engine.ErrCodeConfigMissing {
		t.Fatalf("expected CONFIG_MISSING, got %v", err)
	}
}

func TestHistoryEmpty(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No deployments recorded") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInstall(t *testing.T) {
	testEnv(t)
	src := writeCatalog(t, "/opt/sdk", "/opt/app/share")
	dest := filepath.Join(t.TempDir(), "installed", "catalog.cue")

	if _, err := execute(t, "install", "--file", src, "--catalog", dest); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	want, _ := os.ReadFile(src)
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("catalog not installed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("installed catalog differs from the source")
	}

	t.Run("invalid catalog is not installed", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.cue")
		writeFile(t, bad, "targets: x: env: [{key: \"A\"}]\ndefault: {}\n")
		other := filepath.Join(t.TempDir(), "catalog.cue")

		if _, err := execute(t, "install", "--file", bad, "--catalog", other); err == nil {
			t.Fatal("expected an error for an invalid catalog")
		}
		if _, err := os.Stat(other); !os.IsNotExist(err) {
			t.Errorf("invalid catalog was written, stat error: %v", err)
		}
	})

	t.Run("a source is required", func(t *testing.T) {
		if _, err := execute(t, "install"); err == nil {
			t.Fatal("expected an error without a source")
		}
	})
}

func TestInstallHardcodeAndProfiles(t *testing.T) {
	testEnv(t)
	dest := filepath.Join(t.TempDir(), "catalog.cue")

	if _, err := execute(t, "install", "--hardcode", "--catalog", dest); err != nil {
		t.Fatalf("install failed: %v", err)
	}

	out, err := execute(t, "profiles", "--catalog", dest, "--format", "json")
	if err != nil {
		t.Fatalf("profiles failed: %v", err)
	}
	var profiles []profileSummary
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Target != DefaultTargetName || profiles[0].Deploy != "" {
		t.Errorf("unexpected default profile %+v", profiles[0])
	}
	arm := profiles[1]
	if arm.Target != "armv7-unknown-linux-gnueabi" || arm.Deploy != "root@169.254.0.1:22" {
		t.Errorf("unexpected target profile %+v", arm)
	}
	if len(arm.Env) != 6 || arm.Env[0] != "CC" {
		t.Errorf("unexpected env keys %v", arm.Env)
	}

	out, err = execute(t, "profiles", "--catalog", dest, "--format", "yaml")
	if err != nil {
		t.Fatalf("profiles failed: %v", err)
	}
	if !strings.Contains(out, "target: armv7-unknown-linux-gnueabi") {
		t.Errorf("unexpected YAML:\n%s", out)
	}

	if _, err := execute(t, "profiles", "--catalog", dest, "--format", "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestRun(t *testing.T) {
	project := testEnv(t)
	cfg := &cargo.Config{Env: map[string]string{"LD_LIBRARY_PATH": "/opt/qt/lib"}}
	if err := cfg.Save(cargo.ConfigPath(project)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	t.Setenv("LD_LIBRARY_PATH", "/usr/old")

	out, err := execute(t, "run", "-C", project, "sh", "-c", `printf %s "$LD_LIBRARY_PATH"`)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if want := "/opt/qt/lib" + string(os.PathListSeparator) + "/usr/old"; out != want {
		t.Errorf("expected %q, got %q", want, out)
	}

	_, err = execute(t, "run", "-C", project, "sh", "-c", "exit 3")
	if ExitCode(err) != 3 {
		t.Errorf("expected exit code 3, got %d (%v)", ExitCode(err), err)
	}
}

func TestSSHConfig(t *testing.T) {
	t.Setenv(EnvSSHPassword, "device-secret")
	t.Setenv(EnvSSHProxyPassword, "jump-secret")

	dc := &config.DeployConfig{
		Host:       "169.254.0.1",
		Port:       2222,
		User:       "root",
		Auth:       "password",
		KnownHosts: "/tmp/known_hosts",
	}

	sc := sshConfig(dc)
	if sc.Address() != "169.254.0.1:2222" || sc.User != "root" {
		t.Errorf("unexpected endpoint %s as %s", sc.Address(), sc.User)
	}
	if sc.AuthMethod != ssh.AuthMethodPassword || sc.Password != "device-secret" {
		t.Errorf("password not taken from the environment: %+v", sc)
	}
	if sc.KnownHostsPath != "/tmp/known_hosts" || sc.StrictHostKeyChecking {
		t.Errorf("unexpected host key settings %q/%v", sc.KnownHostsPath, sc.StrictHostKeyChecking)
	}
	if sc.IsProxyEnabled() {
		t.Error("no proxy was configured")
	}

	t.Run("jump host", func(t *testing.T) {
		withProxy := *dc
		withProxy.Proxy = &config.ProxyConfig{Host: "jump.example.com", Port: 2200, User: "dev", Auth: "password"}

		sc := sshConfig(&withProxy)
		if !sc.IsProxyEnabled() || sc.ProxyAddress() != "jump.example.com:2200" {
			t.Fatalf("unexpected proxy %q", sc.ProxyAddress())
		}
		if sc.ProxyUser != "dev" || sc.ProxyAuthMethod != ssh.AuthMethodPassword || sc.ProxyPassword != "jump-secret" {
			t.Errorf("unexpected proxy settings %+v", sc)
		}
		if err := sc.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("jump host with key", func(t *testing.T) {
		withProxy := *dc
		withProxy.Proxy = &config.ProxyConfig{Host: "jump", Port: 22, User: "dev", Auth: "key", Identity: "/keys/jump"}

		sc := sshConfig(&withProxy)
		if sc.ProxyAuthMethod != ssh.AuthMethodKey || sc.ProxyPrivateKeyPath != "/keys/jump" {
			t.Errorf("unexpected proxy key settings %+v", sc)
		}
	})
}
