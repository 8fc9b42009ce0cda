// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tombee/opspilot/internal/log"
)

var eventTypes = map[fsnotify.Op]string{
	fsnotify.Create: "created",
	fsnotify.Write:  "modified",
	fsnotify.Remove: "deleted",
	fsnotify.Rename: "renamed",
}

// Watch reloads the catalog whenever matching files under the runbook
// directory change. Bursts of events are collapsed into one reload after
// the debounce window. Watch blocks until ctx is cancelled and returns nil
// immediately when watching is not configured.
func (r *Registry) Watch(ctx context.Context) error {
	if !r.cfg.Enabled || !r.cfg.Watch {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	root, err := filepath.Abs(r.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := addTree(fsw, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	r.logger.Info("runbook watcher started", slog.String("dir", root))
	d := newDebouncer(r.cfg.DebounceWindow)
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runbook watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			r.handleEvent(fsw, root, event, d)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			watchErrors.Inc()
			r.logger.Error("runbook watcher error", log.Error(err))

		case <-d.C():
			changed := d.Drain()
			r.logger.Debug("runbook change detected", slog.Any("paths", changed))
			if _, err := r.Reload(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reload after change failed, keeping previous runbooks", log.Error(err))
			}
		}
	}
}

func (r *Registry) handleEvent(fsw *fsnotify.Watcher, root string, event fsnotify.Event, d *debouncer) {
	eventType, ok := eventTypes[event.Op&^fsnotify.Chmod]
	if !ok {
		return
	}
	watchEvents.WithLabelValues(eventType).Inc()

	// New directories are not watched recursively by fsnotify.
	if event.Has(fsnotify.Create) {
		if isDir(event.Name) {
			if err := addTree(fsw, event.Name); err != nil {
				r.logger.Warn("failed to watch new directory", slog.String("dir", event.Name), log.Error(err))
			}
			d.Add(event.Name)
			return
		}
	}

	if !r.matches(root, event.Name) {
		return
	}
	d.Add(event.Name)
}

// matches reports whether path, relative to root, satisfies the pattern.
func (r *Registry) matches(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	ok, _ := doublestar.Match(r.cfg.Pattern, filepath.ToSlash(rel))
	return ok
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// debouncer collapses a burst of changes into one signal delivered once no
// new change has arrived for the window. It is owned by a single goroutine.
type debouncer struct {
	window  time.Duration
	timer   *time.Timer
	pending map[string]bool
}

func newDebouncer(window time.Duration) *debouncer {
	t := time.NewTimer(window)
	t.Stop()
	return &debouncer{
		window:  window,
		timer:   t,
		pending: make(map[string]bool),
	}
}

// Add records a change and restarts the quiet period.
func (d *debouncer) Add(path string) {
	d.pending[path] = true
	d.timer.Reset(d.window)
}

// C fires when the quiet period has elapsed.
func (d *debouncer) C() <-chan time.Time {
	return d.timer.C
}

// Drain returns and clears the pending paths.
func (d *debouncer) Drain() []string {
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	return paths
}

// Pending returns the number of changed paths waiting for the window.
func (d *debouncer) Pending() int {
	return len(d.pending)
}

func (d *debouncer) Stop() {
	d.timer.Stop()
}
