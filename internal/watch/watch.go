// Package watch re-runs scenario checks when their files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches scenario files and triggers a re-check after changes
// settle.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   []string
	check   func()
}

// New creates a file watcher over the given paths. Paths that do not exist
// are skipped, not errors, so globs can be re-expanded by the caller.
func New(paths []string, check func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch: watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}
	if len(watched) == 0 {
		watcher.Close()
		return nil, fmt.Errorf("watch: no watchable paths")
	}

	return &Watcher{watcher: watcher, paths: watched, check: check}, nil
}

// Paths returns the files actually being watched.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Run blocks until ctx is cancelled, re-running the check 500ms after the
// last write.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, w.check)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}
