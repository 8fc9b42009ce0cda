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

package runbook

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tombee/opspilot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parse decodes one or more YAML documents into definitions. Empty
// documents are ignored. Definitions are returned unvalidated so callers
// can decide whether a single bad definition is fatal.
func Parse(data []byte) ([]*UseCaseDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var defs []*UseCaseDefinition
	for {
		var def UseCaseDefinition
		err := dec.Decode(&def)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse use case definition: %w", err)
		}
		if def.ID == "" && def.Classification == nil && len(def.Execution.Steps) == 0 {
			continue
		}
		defs = append(defs, &def)
	}

	return defs, nil
}

// Validate checks the structural rules a definition must satisfy before it
// can be published.
func (d *UseCaseDefinition) Validate() error {
	if d.ID == "" {
		return &errors.ValidationError{
			Field:      "id",
			Message:    "use case id is required",
			Suggestion: "add a unique id such as CANCEL_CASE",
		}
	}

	if d.Classification == nil {
		return &errors.ValidationError{
			Field:      "classification",
			Message:    fmt.Sprintf("use case %s has no classification section", d.ID),
			Suggestion: "add classification.keywords",
		}
	}

	if len(d.Execution.Steps) == 0 {
		return &errors.ValidationError{
			Field:      "execution.steps",
			Message:    fmt.Sprintf("use case %s must have at least one step", d.ID),
			Suggestion: "add at least one step under execution.steps",
		}
	}

	if rp := d.Execution.RetryPolicy; rp != nil {
		if rp.MaxAttempts < 0 || rp.BackoffMs < 0 {
			return &errors.ValidationError{
				Field:   "execution.retryPolicy",
				Message: "maxAttempts and backoffMs must not be negative",
			}
		}
	}

	seen := make(map[int]bool)
	for _, step := range d.Steps() {
		if step.StepNumber < 1 {
			return &errors.ValidationError{
				Field:      "stepNumber",
				Message:    fmt.Sprintf("step %q has stepNumber %d; step numbers start at 1", step.Name, step.StepNumber),
				Suggestion: "number steps from 1",
			}
		}
		if seen[step.StepNumber] {
			return &errors.ValidationError{
				Field:      "stepNumber",
				Message:    fmt.Sprintf("duplicate stepNumber %d", step.StepNumber),
				Suggestion: "ensure each step, including rollback steps, has a unique stepNumber",
			}
		}
		seen[step.StepNumber] = true

		if _, err := step.Action(); err != nil {
			return fmt.Errorf("invalid step %d: %w", step.StepNumber, err)
		}
	}

	return nil
}

// Steps returns the full step space: execution steps in declaration order
// followed by active rollback steps, which are tagged with the rollback stage.
func (d *UseCaseDefinition) Steps() []StepDefinition {
	steps := make([]StepDefinition, 0, len(d.Execution.Steps))
	steps = append(steps, d.Execution.Steps...)

	if d.Rollback.Active() {
		for _, s := range d.Rollback.Steps {
			s.StepType = string(StageRollback)
			steps = append(steps, s)
		}
	}

	return steps
}

// StepByNumber resolves a step by its number.
func (d *UseCaseDefinition) StepByNumber(n int) (StepDefinition, error) {
	for _, s := range d.Steps() {
		if s.StepNumber == n {
			return s, nil
		}
	}
	return StepDefinition{}, &errors.NotFoundError{
		Resource: "step",
		ID:       fmt.Sprintf("%s#%d", d.ID, n),
	}
}

// EntityRule returns the extraction validation rule for an entity, if any.
func (d *UseCaseDefinition) EntityRule(entity string) *ValidationConfig {
	cfg, ok := d.Extraction[entity]
	if !ok {
		return nil
	}
	return cfg.Validation
}
