package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the base whenever its file changes, until ctx is cancelled.
// The parent directory is watched rather than the file so atomic
// rename-on-save keeps working. Reload failures are logged and the previous
// mapping stays active.
func (b *Base) Watch(ctx context.Context) error {
	if b.path == "" {
		return fmt.Errorf("knowledge base has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(b.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	slog.Info("knowledge base watcher started", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := b.Reload(); err != nil {
				slog.Warn("knowledge base reload failed, keeping previous entries", "path", target, "error", err)
				continue
			}
			slog.Info("knowledge base reloaded", "path", target, "entries", b.Len())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("knowledge base watcher error", "error", err)
		}
	}
}
