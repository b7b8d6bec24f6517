package shared

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	levels := make(chan string, 8)
	err := WatchConfig(ctx, path, log.New(io.Discard), func(c *Config) {
		select {
		case levels <- c.Log.Level:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchConfig failed: %v", err)
	}

	t.Run("ignores sibling files", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		select {
		case level := <-levels:
			t.Fatalf("unexpected reload with level %q", level)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("reloads on write", func(t *testing.T) {
		if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		deadline := time.After(5 * time.Second)
		for {
			select {
			case level := <-levels:
				if level == "debug" {
					return
				}
			case <-deadline:
				t.Fatal("timed out waiting for config reload")
			}
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		err := WatchConfig(ctx, filepath.Join(dir, "nope", "config.toml"), log.New(io.Discard), func(*Config) {})
		if err == nil {
			t.Error("expected error watching a missing directory")
		}
	})
}

func TestApplyLogLevel(t *testing.T) {
	l := log.New(io.Discard)
	if !ApplyLogLevel(l, "ERROR") || l.GetLevel() != log.ErrorLevel {
		t.Errorf("expected error level, got %v", l.GetLevel())
	}
	if ApplyLogLevel(l, "loud") || l.GetLevel() != log.ErrorLevel {
		t.Errorf("invalid level should leave %v unchanged", l.GetLevel())
	}
}
