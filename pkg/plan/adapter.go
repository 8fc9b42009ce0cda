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

// Package plan converts a use case definition and extracted entities into
// the stage-grouped steps shown to an operator.
package plan

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tombee/opspilot/pkg/runbook"
)

// Plan is the operator-facing view of one use case.
type Plan struct {
	TaskID      string   `json:"taskId"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Service     string   `json:"service,omitempty"`
	Prechecks   []Step   `json:"prechecks"`
	Procedure   []Step   `json:"procedure"`
	Postchecks  []Step   `json:"postchecks"`
	Rollback    []Step   `json:"rollback"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Step is a resolved step ready for display or execution.
type Step struct {
	StepNumber       int                   `json:"stepNumber"`
	Name             string                `json:"name,omitempty"`
	Description      string                `json:"description"`
	Stage            runbook.Stage         `json:"stage"`
	Method           runbook.Method        `json:"method"`
	Path             string                `json:"path,omitempty"`
	RequestBody      string                `json:"requestBody,omitempty"`
	Headers          map[string]string     `json:"headers,omitempty"`
	ExpectedStatus   int                   `json:"expectedStatus,omitempty"`
	ExpectedResponse string                `json:"expectedResponse,omitempty"`
	AutoExecutable   bool                  `json:"autoExecutable"`
	Optional         bool                  `json:"optional,omitempty"`
	OnFailure        runbook.FailureAction `json:"onFailure"`
	FailureMessage   string                `json:"failureMessage,omitempty"`
}

// Steps returns every step in stage order.
func (p *Plan) Steps() []Step {
	out := make([]Step, 0, len(p.Prechecks)+len(p.Procedure)+len(p.Postchecks)+len(p.Rollback))
	out = append(out, p.Prechecks...)
	out = append(out, p.Procedure...)
	out = append(out, p.Postchecks...)
	out = append(out, p.Rollback...)
	return out
}

// Empty returns a plan with no steps for taskID.
func Empty(taskID string) *Plan {
	return &Plan{
		TaskID:     taskID,
		Prechecks:  []Step{},
		Procedure:  []Step{},
		Postchecks: []Step{},
		Rollback:   []Step{},
	}
}

// ConditionEvaluator decides whether a conditional step applies.
type ConditionEvaluator interface {
	Evaluate(condition string, entities map[string]string) (bool, error)
}

// Adapter builds plans. It is stateless apart from its collaborators and
// safe for concurrent use.
type Adapter struct {
	conditions ConditionEvaluator
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Adapter. A nil evaluator keeps every step regardless of
// its condition.
func New(conditions ConditionEvaluator, opts ...Option) *Adapter {
	a := &Adapter{conditions: conditions, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ToResponse resolves and groups the steps of def for entities.
func (a *Adapter) ToResponse(def *runbook.UseCaseDefinition, entities map[string]string) *Plan {
	p := Empty(def.ID)
	p.Name = def.Name
	p.Description = def.Description
	p.Category = def.Category
	p.Service = def.DownstreamServiceOverride
	p.Warnings = append(p.Warnings, def.Warnings...)

	for _, sd := range def.Steps() {
		if sd.Condition != "" && a.conditions != nil {
			ok, err := a.conditions.Evaluate(sd.Condition, entities)
			if err != nil {
				a.logger.Warn("step condition failed, keeping step",
					slog.String("task_id", def.ID),
					slog.Int("step_number", sd.StepNumber),
					slog.String("error", err.Error()))
				p.Warnings = append(p.Warnings,
					fmt.Sprintf("step %d condition could not be evaluated: %v", sd.StepNumber, err))
			} else if !ok {
				continue
			}
		}

		step, err := a.toStep(sd, entities)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("step %d skipped: %v", sd.StepNumber, err))
			continue
		}

		switch step.Stage {
		case runbook.StagePrechecks:
			p.Prechecks = append(p.Prechecks, step)
		case runbook.StagePostchecks:
			p.Postchecks = append(p.Postchecks, step)
		case runbook.StageRollback:
			p.Rollback = append(p.Rollback, step)
		default:
			p.Procedure = append(p.Procedure, step)
		}
	}

	return p
}

func (a *Adapter) toStep(sd runbook.StepDefinition, entities map[string]string) (Step, error) {
	action, err := sd.Action()
	if err != nil {
		return Step{}, err
	}

	step := Step{
		StepNumber:     sd.StepNumber,
		Name:           sd.Name,
		Stage:          sd.Stage(),
		Method:         action.Method(),
		Optional:       sd.Optional,
		OnFailure:      sd.FailureAction(),
		FailureMessage: runbook.Resolve(sd.FailureMessage(), entities),
	}

	switch act := action.(type) {
	case runbook.LocalMessage:
		msg := runbook.Resolve(act.Message, entities)
		step.Description = msg
		step.RequestBody = msg
		step.ExpectedResponse = msg
		step.AutoExecutable = true

	case runbook.HeaderCheck:
		step.Path = act.Header
		step.ExpectedResponse = runbook.Resolve(act.Expected, entities)
		step.Description = runbook.Resolve(sd.Description, entities)
		if step.Description == "" {
			step.Description = fmt.Sprintf("Verify %s header", act.Header)
		}
		step.AutoExecutable = true

	case runbook.EntityValidation:
		step.ExpectedResponse = runbook.Resolve(sd.ExpectedResponse, entities)
		step.Description = runbook.Resolve(sd.Description, entities)
		if step.Description == "" {
			step.Description = fmt.Sprintf("Validate %s", act.Entity)
		}
		step.AutoExecutable = true

	case runbook.HTTPCall:
		step.Path = runbook.Resolve(act.Path, entities)
		step.Description = runbook.Resolve(sd.Description, entities)
		step.ExpectedResponse = runbook.Resolve(sd.ExpectedResponse, entities)
		step.ExpectedStatus = act.ExpectedStatus
		step.Headers = runbook.ResolveHeaders(act.Headers, entities)
		step.AutoExecutable = sd.AutoExecutable
		if act.Body != nil {
			step.RequestBody = FormatBody(runbook.ResolveBody(act.Body, entities))
		}
	}

	return step, nil
}

// FormatBody renders body as indented JSON with sorted keys. Values that
// cannot be encoded fall back to their default text form.
func FormatBody(body map[string]interface{}) string {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Sprint(body)
	}
	return string(data)
}
