package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// watchDelay debounces bursts of events from editors that write a file in
// several steps.
var watchDelay = 500 * time.Millisecond

// Watch calls fn every time the file at path changes, until ctx is done.
// The parent directory is watched so that editors replacing the file are
// noticed. An error from fn is logged and watching goes on.
func Watch(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	log.Info().Str("path", abs).Msg("Watching catalog")

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Catalog changed")
			fire = time.After(watchDelay)

		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to apply catalog change")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
