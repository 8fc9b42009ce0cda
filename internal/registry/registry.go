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

// Package registry discovers use case definitions on disk and serves them
// from an immutable snapshot.
//
// Reloads build a complete new snapshot and publish it with a single atomic
// store, so readers see either the old catalog or the new one.
package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/singleflight"

	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/runbook"
)

// DefaultPattern matches YAML files anywhere under the runbook directory.
const DefaultPattern = "**/*.{yaml,yml}"

// Config configures discovery.
type Config struct {
	// Enabled turns loading on. A disabled registry is permanently empty.
	Enabled bool

	// Dir is the root directory searched for definitions.
	Dir string

	// Pattern is a doublestar glob relative to Dir.
	Pattern string

	// Watch reloads the catalog when files under Dir change.
	Watch bool

	// DebounceWindow is the quiet period after the last change before a reload.
	DebounceWindow time.Duration
}

// Stats summarizes one load.
type Stats struct {
	Runbooks   int       `json:"runbooks"`
	Files      int       `json:"files"`
	Invalid    int       `json:"invalid"`
	Duplicates int       `json:"duplicates"`
	LoadedAt   time.Time `json:"loadedAt"`
}

type snapshot struct {
	defs  []*runbook.UseCaseDefinition
	byID  map[string]*runbook.UseCaseDefinition
	stats Stats
}

var emptySnapshot = &snapshot{byID: map[string]*runbook.UseCaseDefinition{}}

// Registry holds the current catalog of use case definitions.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
	reloads singleflight.Group
}

// New creates an empty registry. Call Load to populate it.
func New(cfg Config, logger *slog.Logger) *Registry {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 500 * time.Millisecond
	}

	r := &Registry{
		cfg:    cfg,
		logger: log.WithComponent(log.OrDefault(logger), "registry"),
	}
	r.current.Store(emptySnapshot)
	return r
}

// Load performs the initial discovery. It is equivalent to Reload.
func (r *Registry) Load(ctx context.Context) error {
	_, err := r.Reload(ctx)
	return err
}

// Reload rebuilds the catalog from disk and publishes it. Concurrent calls
// share one rebuild. When the directory cannot be read the previous
// snapshot stays in place and the error is returned.
func (r *Registry) Reload(ctx context.Context) (Stats, error) {
	if !r.cfg.Enabled {
		return Stats{}, nil
	}

	v, err, _ := r.reloads.Do("reload", func() (interface{}, error) {
		start := time.Now()
		snap, err := r.build(ctx)
		if err != nil {
			reloadsTotal.WithLabelValues("error").Inc()
			r.logger.Error("runbook reload failed", log.Error(err), slog.String("dir", r.cfg.Dir))
			return Stats{}, err
		}

		r.current.Store(snap)
		reloadsTotal.WithLabelValues("success").Inc()
		runbooksLoaded.Set(float64(len(snap.defs)))

		r.logger.Info("runbooks loaded",
			slog.Int("runbooks", snap.stats.Runbooks),
			slog.Int("files", snap.stats.Files),
			slog.Int("invalid", snap.stats.Invalid),
			slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
		)
		return snap.stats, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

// build discovers, parses and validates every matching file. One bad file
// or definition never aborts the whole load.
func (r *Registry) build(ctx context.Context) (*snapshot, error) {
	info, err := os.Stat(r.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("runbook directory %s: %w", r.cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("runbook path %s is not a directory", r.cfg.Dir)
	}

	fsys := os.DirFS(r.cfg.Dir)
	files, err := doublestar.Glob(fsys, r.cfg.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid runbook pattern %q: %w", r.cfg.Pattern, err)
	}
	sort.Strings(files)

	snap := &snapshot{byID: make(map[string]*runbook.UseCaseDefinition)}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		source := filepath.Join(r.cfg.Dir, filepath.FromSlash(name))
		defs, err := readDefinitions(fsys, name)
		if err != nil {
			snap.stats.Invalid++
			invalidDefinitions.Inc()
			r.logger.Warn("skipping unreadable runbook file", slog.String("file", source), log.Error(err))
			continue
		}
		snap.stats.Files++

		for _, def := range defs {
			def.Source = source
			if err := def.Validate(); err != nil {
				snap.stats.Invalid++
				invalidDefinitions.Inc()
				r.logger.Warn("skipping invalid runbook",
					slog.String("file", source),
					slog.String(log.TaskIDKey, def.ID),
					log.Error(err))
				continue
			}
			if existing, ok := snap.byID[def.ID]; ok {
				snap.stats.Duplicates++
				r.logger.Warn("duplicate runbook id, keeping first",
					slog.String(log.TaskIDKey, def.ID),
					slog.String("kept", existing.Source),
					slog.String("ignored", source))
				continue
			}
			snap.byID[def.ID] = def
			snap.defs = append(snap.defs, def)
		}
	}

	snap.stats.Runbooks = len(snap.defs)
	snap.stats.LoadedAt = time.Now()
	return snap, nil
}

func readDefinitions(fsys fs.FS, name string) ([]*runbook.UseCaseDefinition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return runbook.Parse(data)
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (*runbook.UseCaseDefinition, error) {
	def, ok := r.current.Load().byID[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "runbook", ID: id}
	}
	return def, nil
}

// List returns the definitions in discovery order. The slice is shared with
// the snapshot and must not be modified.
func (r *Registry) List() []*runbook.UseCaseDefinition {
	return r.current.Load().defs
}

// Len returns the number of loaded definitions.
func (r *Registry) Len() int {
	return len(r.current.Load().defs)
}

// Enabled reports whether loading is on and at least one definition is loaded.
func (r *Registry) Enabled() bool {
	return r.cfg.Enabled && r.Len() > 0
}

// Stats returns the statistics of the current snapshot.
func (r *Registry) Stats() Stats {
	return r.current.Load().stats
}

// Dir returns the configured runbook directory.
func (r *Registry) Dir() string {
	return r.cfg.Dir
}
