package experiments

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch refreshes the provider whenever path changes on disk, until ctx is
// cancelled. The parent directory is watched rather than the file itself so
// atomic save patterns (write temp file, rename over the target) are caught.
// Refresh failures are reported through the provider's refresh logger and
// never stop the watch.
func (p *Provider) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("experiments: watch: %w", err)
	}
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("experiments: watch %s: %w", path, err)
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
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				_ = p.Refresh(ctx)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
