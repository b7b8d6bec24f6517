package shared

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig reloads the config file at path whenever it is written or replaced and passes the
// result to onChange. The parent directory is watched so editors that save by rename are seen.
//
// Watching stops when ctx is done. Files that fail to parse are logged and skipped.
func WatchConfig(ctx context.Context, path string, logger *log.Logger, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				config, err := LoadConfig(abs)
				if err != nil {
					logger.Warn("config reload failed", "file", abs, "err", err)
					continue
				}
				logger.Debug("config reloaded", "file", abs)
				onChange(config)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			}
		}
	}()
	return nil
}

// ApplyLogLevel sets l to the named level and reports whether the name was valid.
func ApplyLogLevel(l *log.Logger, level string) bool {
	ll, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return false
	}
	SetLogLevel(l, ll)
	return true
}
