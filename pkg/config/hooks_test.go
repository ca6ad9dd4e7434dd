package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/condep/condep/pkg/deploy"
)

func TestHookCommands(t *testing.T) {
	h := NewHookEvaluator(0)
	input := map[string]interface{}{
		"target":      "armv7-unknown-linux-gnueabi",
		"executables": []string{"/mnt/ext1/applications/reader"},
		"vars":        map[string]interface{}{"restart": "yes"},
	}

	tests := []struct {
		name    string
		script  string
		want    []string
		wantErr string
	}{
		{
			name:   "list comprehension",
			script: `commands = ["ln -sf " + quote(e) + " /usr/bin" for e in executables] + ["echo " + target]`,
			want: []string{
				"ln -sf '/mnt/ext1/applications/reader' /usr/bin",
				"echo armv7-unknown-linux-gnueabi",
			},
		},
		{
			name: "conditional on vars",
			script: `
def build():
    out = []
    if vars.get("restart") == "yes":
        out.append("killall reader")
    return out

commands = build()
`,
			want: []string{"killall reader"},
		},
		{
			name:   "no commands global",
			script: `x = 1`,
			want:   nil,
		},
		{
			name:    "commands is not a list",
			script:  `commands = "reboot"`,
			wantErr: "must be a list",
		},
		{
			name:    "command is not a string",
			script:  `commands = ["sync", 1]`,
			wantErr: "commands[1] must be a string",
		},
		{
			name:    "syntax error",
			script:  `commands = [`,
			wantErr: "hook deploy.star failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Commands(context.Background(), "deploy.star", tt.script, input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHookTimeout(t *testing.T) {
	h := NewHookEvaluator(50 * time.Millisecond)
	script := `
def spin():
    for i in range(100000):
        for j in range(100000):
            pass

spin()
`
	start := time.Now()
	_, err := h.Commands(context.Background(), "spin.star", script, nil)
	if err == nil {
		t.Fatal("expected the hook to be cancelled")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestHookInput(t *testing.T) {
	var copied deploy.Paths
	copied.Add(deploy.Executables, "/bin/app")
	copied.Add(deploy.Libraries, "/lib/libapp.so")

	input := HookInput(deploy.HookInput{Target: "t", Copied: copied}, map[string]string{"k": "v"})

	if input["target"] != "t" {
		t.Errorf("unexpected target %v", input["target"])
	}
	for _, c := range deploy.Categories {
		if _, ok := input[c.String()]; !ok {
			t.Errorf("missing category %s", c)
		}
	}
	if got := input["executables"].([]string); len(got) != 1 || got[0] != "/bin/app" {
		t.Errorf("unexpected executables %v", got)
	}
	if input["vars"].(map[string]interface{})["k"] != "v" {
		t.Errorf("unexpected vars %v", input["vars"])
	}
}

func TestHookFunc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.star")
	script := `commands = ["echo " + quote(x) for x in libraries]`
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	var copied deploy.Paths
	copied.Add(deploy.Libraries, "/lib/libqt.so.5")

	hook := NewHookEvaluator(time.Second).Hook(path, nil)
	got, err := hook(context.Background(), deploy.HookInput{Target: "t", Copied: copied})
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if want := []string{"echo '/lib/libqt.so.5'"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	missing := NewHookEvaluator(time.Second).Hook(filepath.Join(t.TempDir(), "none.star"), nil)
	if _, err := missing(context.Background(), deploy.HookInput{}); err == nil {
		t.Error("expected an error for a missing hook script")
	}
}
