package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch(t *testing.T) {
	watchDelay = 10 * time.Millisecond
	t.Cleanup(func() { watchDelay = 500 * time.Millisecond })

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.cue")
	other := filepath.Join(dir, "other.cue")
	if err := os.WriteFile(path, []byte("default: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(context.Context) error {
			calls <- struct{}{}
			return nil
		})
	}()

	// Changes to siblings are ignored.
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The watcher may not be registered yet, so keep touching the file.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-calls:
			break loop
		case <-tick.C:
			if err := os.WriteFile(path, []byte("default: {}\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("callback not called after the catalog changed")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "gone", "catalog.cue"), func(context.Context) error { return nil })
	if err == nil {
		t.Error("expected an error watching a missing directory")
	}
}
