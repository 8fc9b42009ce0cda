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

package classify

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/tombee/opspilot/pkg/runbook"
)

const (
	keywordWeight = 1.0
	synonymWeight = 0.5
)

// Match is the outcome of declarative scoring.
type Match struct {
	TaskID   string   `json:"taskId"`
	Score    float64  `json:"score"`
	Keywords []string `json:"keywords,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Unknown reports whether no definition matched.
func (m Match) Unknown() bool {
	return m.TaskID == TaskUnknown
}

// Scorer ranks use case definitions against a query. It holds no state
// between calls and is safe for concurrent use.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a Scorer. A nil logger uses slog.Default.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger.With(slog.String("component", "classifier"))}
}

// Classify scores each definition and returns the strictly highest scoring
// one. Ties keep the definition seen first in defs. Definitions below their
// minConfidence are ineligible.
func (s *Scorer) Classify(query string, defs []*runbook.UseCaseDefinition) Match {
	q := strings.ToLower(strings.TrimSpace(query))
	best := Match{TaskID: TaskUnknown}
	if q == "" {
		return best
	}

	for _, def := range defs {
		if def == nil || def.Classification == nil {
			continue
		}

		m := score(q, def)
		if floor := def.Classification.MinConfidence; floor > 0 && m.Score < floor {
			s.logger.Debug("definition below confidence floor",
				slog.String("task_id", def.ID),
				slog.Float64("score", m.Score),
				slog.Float64("min_confidence", floor))
			continue
		}

		if m.Score > best.Score {
			best = m
		}
	}

	return best
}

func score(q string, def *runbook.UseCaseDefinition) Match {
	m := Match{TaskID: def.ID}
	c := def.Classification

	for _, kw := range c.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q, kw) {
			m.Score += keywordWeight
			m.Keywords = append(m.Keywords, kw)
		}
	}

	keys := make([]string, 0, len(c.Synonyms))
	for k := range c.Synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, syn := range c.Synonyms[k] {
			syn = strings.ToLower(strings.TrimSpace(syn))
			if syn != "" && strings.Contains(q, syn) {
				m.Score += synonymWeight
				m.Synonyms = append(m.Synonyms, syn)
			}
		}
	}

	return m
}
