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

// Package orchestrator turns an operator request into a plan by composing
// classification, entity extraction, catalog lookup and plan building.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/pkg/classify"
	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/extract"
	"github.com/tombee/opspilot/pkg/plan"
	"github.com/tombee/opspilot/pkg/runbook"
)

// Classifier names reported in responses and metrics.
const (
	ClassifierExplicit    = "explicit"
	ClassifierDeclarative = "declarative"
	ClassifierHeuristic   = "heuristic"
	ClassifierNone        = "none"
)

// Catalog is the read side of the runbook registry.
type Catalog interface {
	Get(id string) (*runbook.UseCaseDefinition, error)
	List() []*runbook.UseCaseDefinition
	Enabled() bool
}

// Request is one interpretation request.
type Request struct {
	// Query is the operator's free text
	Query string `json:"query"`

	// TaskID skips classification when set
	TaskID string `json:"taskId,omitempty"`
}

// Response is the plan for a request together with how it was reached.
type Response struct {
	*plan.Plan

	Entities   map[string]string `json:"entities"`
	Classifier string            `json:"classifier"`
	Score      float64           `json:"score,omitempty"`
}

// Orchestrator is safe for concurrent use. It reads the catalog snapshot on
// every call and keeps no per-request state.
type Orchestrator struct {
	catalog   Catalog
	adapter   *plan.Adapter
	scorer    *classify.Scorer
	extractor *extract.Extractor
	fallback  bool
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHeuristicFallback controls whether the heuristic classifier runs when
// no definition matches. It is on by default.
func WithHeuristicFallback(enabled bool) Option {
	return func(o *Orchestrator) {
		o.fallback = enabled
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

// New creates an Orchestrator.
func New(catalog Catalog, adapter *plan.Adapter, scorer *classify.Scorer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		adapter:   adapter,
		scorer:    scorer,
		extractor: extract.New(),
		fallback:  true,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = log.WithComponent(log.OrDefault(o.logger), "orchestrator")
	return o
}

// Interpret classifies the request, extracts entities and builds the plan.
// An unrecognized request yields an UNKNOWN response rather than an error;
// the only error is a request with neither query nor task id.
func (o *Orchestrator) Interpret(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	taskID := strings.TrimSpace(req.TaskID)
	if query == "" && taskID == "" {
		return nil, &errors.ValidationError{
			Field:      "query",
			Message:    "a query or task id is required",
			Suggestion: `describe the task, e.g. "cancel case 2025123P6732"`,
		}
	}

	var (
		def        *runbook.UseCaseDefinition
		heuristic  *classify.HeuristicResult
		classifier = ClassifierNone
		score      float64
		warnings   []string
	)

	switch {
	case taskID != "":
		classifier = ClassifierExplicit
		found, err := o.catalog.Get(taskID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("task %s is not a known runbook", taskID))
			return o.unknown(ctx, classifier, warnings), nil
		}
		def = found

	default:
		if o.catalog.Enabled() {
			m := o.scorer.Classify(query, o.catalog.List())
			if !m.Unknown() {
				if found, err := o.catalog.Get(m.TaskID); err == nil {
					def, classifier, score = found, ClassifierDeclarative, m.Score
				}
			}
		}
		if def == nil && o.fallback {
			h := classify.Heuristic(query)
			if h.Intent != classify.TaskUnknown {
				heuristic, classifier = &h, ClassifierHeuristic
				if found, err := o.catalog.Get(h.Intent); err == nil {
					def = found
				}
			}
		}
	}

	switch {
	case def != nil:
		return o.respond(ctx, def, query, heuristic, classifier, score, warnings), nil
	case heuristic != nil:
		resp := &Response{
			Plan:       plan.Empty(heuristic.Intent),
			Entities:   heuristic.Entities(),
			Classifier: classifier,
		}
		resp.Warnings = append(warnings, fmt.Sprintf("no runbook is loaded for task %s", heuristic.Intent))
		o.record(ctx, resp)
		return resp, nil
	default:
		return o.unknown(ctx, classifier, warnings), nil
	}
}

func (o *Orchestrator) respond(ctx context.Context, def *runbook.UseCaseDefinition, query string, heuristic *classify.HeuristicResult, classifier string, score float64, warnings []string) *Response {
	result := o.extractor.Extract(query, def.Extraction)
	entities := result.Entities

	rejected := make(map[string]bool, len(result.Rejected))
	for _, r := range result.Rejected {
		rejected[r.Entity] = true
	}

	// Heuristic entities fill gaps but never override configured extraction,
	// and must pass the same rule an extracted value would.
	if heuristic != nil {
		for k, v := range heuristic.Entities() {
			if _, ok := entities[k]; ok || rejected[k] {
				continue
			}
			if err := o.extractor.ValidateValue(v, def.EntityRule(k)); err != nil {
				continue
			}
			entities[k] = v
		}
	}
	if status, ok := entities["status"]; ok {
		if normalized := classify.NormalizeStatus(status); o.extractor.ValidateValue(normalized, def.EntityRule("status")) == nil {
			entities["status"] = normalized
		}
	}

	for _, r := range result.Rejected {
		warnings = append(warnings, fmt.Sprintf("value %q for %s was rejected: %s", r.Value, r.Entity, r.Message))
	}
	for _, name := range missingRequired(def, result.Missing, entities) {
		warnings = append(warnings, fmt.Sprintf("required entity %s was not found in the request", name))
	}

	p := o.adapter.ToResponse(def, entities)
	p.Warnings = append(warnings, p.Warnings...)

	resp := &Response{
		Plan:       p,
		Entities:   entities,
		Classifier: classifier,
		Score:      score,
	}
	o.record(ctx, resp)
	return resp
}

// missingRequired merges extraction-level and classification-level required
// entities that are absent from the final entity set.
func missingRequired(def *runbook.UseCaseDefinition, missing []string, entities map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if _, ok := entities[name]; ok || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, name := range missing {
		add(name)
	}
	if def.Classification != nil {
		for _, name := range def.Classification.RequiredEntities {
			add(name)
		}
	}
	sort.Strings(out)
	return out
}

func (o *Orchestrator) unknown(ctx context.Context, classifier string, warnings []string) *Response {
	resp := &Response{
		Plan:       plan.Empty(classify.TaskUnknown),
		Entities:   map[string]string{},
		Classifier: classifier,
	}
	resp.Warnings = append(warnings, "could not determine the task for this request; rephrase it or pass a task id")
	o.record(ctx, resp)
	return resp
}

func (o *Orchestrator) record(ctx context.Context, resp *Response) {
	classificationsTotal.WithLabelValues(resp.TaskID, resp.Classifier).Inc()
	o.logger.DebugContext(ctx, "request interpreted",
		slog.String(log.TaskIDKey, resp.TaskID),
		slog.String("classifier", resp.Classifier),
		slog.Float64("score", resp.Score),
		slog.Int("steps", len(resp.Steps())),
		slog.Int("warnings", len(resp.Warnings)))
}
