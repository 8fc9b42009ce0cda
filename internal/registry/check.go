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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Finding is the outcome of checking one definition, or one file that
// could not be parsed (ID empty).
type Finding struct {
	File string `json:"file"`
	ID   string `json:"id,omitempty"`
	Err  error  `json:"-"`
}

// OK reports whether the definition passed.
func (f Finding) OK() bool { return f.Err == nil }

// Check parses and validates the definitions at path without publishing
// them. path may be a single file or a directory searched with pattern.
// Findings follow file order, then document order.
func Check(path, pattern string) ([]Finding, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var dir string
	var files []string
	if info.IsDir() {
		if pattern == "" {
			pattern = DefaultPattern
		}
		dir = path
		files, err = doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid runbook pattern %q: %w", pattern, err)
		}
		sort.Strings(files)
	} else {
		dir = filepath.Dir(path)
		files = []string{filepath.Base(path)}
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]string)
	var findings []Finding
	for _, name := range files {
		source := filepath.Join(dir, filepath.FromSlash(name))
		defs, err := readDefinitions(fsys, name)
		if err != nil {
			findings = append(findings, Finding{File: source, Err: err})
			continue
		}
		for _, def := range defs {
			f := Finding{File: source, ID: def.ID}
			if err := def.Validate(); err != nil {
				f.Err = err
			} else if first, dup := seen[def.ID]; dup {
				f.Err = fmt.Errorf("duplicate id %s, first defined in %s", def.ID, first)
			} else {
				seen[def.ID] = source
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}
