package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// Watch reloads the config file whenever it changes and sends the new
// settings on the returned channel. Files that fail to load are logged and
// skipped, so receivers only ever see valid settings. The channel is closed
// when ctx is done.
func Watch(ctx context.Context, path string) (<-chan *Settings, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory: editors often replace the file rather than
	// writing it in place.
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	out := make(chan *Settings, 1)
	go watchLoop(ctx, watcher, absPath, out)

	slog.Debug("Watching config file", "path", absPath)
	return out, nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, out chan<- *Settings) {
	defer close(out)
	defer watcher.Close()

	name := filepath.Base(path)
	changed := make(chan struct{}, 1)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case changed <- struct{}{}:
				default:
					// Reload already pending
				}
			})

		case <-changed:
			s, err := Load(path)
			if err != nil {
				slog.Warn("Ignoring invalid config change", "path", path, "error", err)
				continue
			}
			slog.Info("Config reloaded", "path", path)
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}
