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

package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/registry"
	"github.com/tombee/opspilot/pkg/classify"
	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/expression"
	"github.com/tombee/opspilot/pkg/plan"
	"github.com/tombee/opspilot/pkg/runbook"
)

type fakeCatalog struct {
	defs []*runbook.UseCaseDefinition
}

func (c *fakeCatalog) Get(id string) (*runbook.UseCaseDefinition, error) {
	for _, d := range c.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, &errors.NotFoundError{Resource: "runbook", ID: id}
}

func (c *fakeCatalog) List() []*runbook.UseCaseDefinition { return c.defs }
func (c *fakeCatalog) Enabled() bool                      { return len(c.defs) > 0 }

func cancelDefinition() *runbook.UseCaseDefinition {
	return &runbook.UseCaseDefinition{
		ID:       "CANCEL_CASE",
		Name:     "Cancel case",
		Warnings: []string{"cancellation cannot be undone"},
		Classification: &runbook.Classification{
			Keywords:         []string{"cancel"},
			RequiredEntities: []string{"case_id", "reason"},
		},
		Extraction: map[string]runbook.EntityConfig{
			"case_id": {
				Patterns: []string{`case\s+(\d{3,}[a-z]?\d*)`},
				Required: true,
			},
		},
		Execution: runbook.ExecutionConfig{
			Steps: []runbook.StepDefinition{
				{StepNumber: 1, Name: "Check", StepType: "precheck", Method: runbook.MethodGet, Path: "/cases/{case_id}"},
				{StepNumber: 2, Name: "Cancel", Method: runbook.MethodPost, Path: "/cases/{case_id}/cancel"},
			},
		},
	}
}

func statusDefinition() *runbook.UseCaseDefinition {
	return &runbook.UseCaseDefinition{
		ID:             "UPDATE_CASE_STATUS",
		Classification: &runbook.Classification{Keywords: []string{"transition"}},
		Execution: runbook.ExecutionConfig{
			Steps: []runbook.StepDefinition{
				{StepNumber: 1, Method: runbook.MethodLocalMessage, LocalMessage: "Moving {case_id} to {status}"},
			},
		},
	}
}

func newOrchestrator(defs []*runbook.UseCaseDefinition, opts ...Option) *Orchestrator {
	return New(&fakeCatalog{defs: defs}, plan.New(expression.New()), classify.NewScorer(nil), opts...)
}

func TestInterpret_Declarative(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition()})

	resp, err := o.Interpret(context.Background(), Request{Query: "please cancel case 2025123P6732"})
	require.NoError(t, err)

	assert.Equal(t, "CANCEL_CASE", resp.TaskID)
	assert.Equal(t, ClassifierDeclarative, resp.Classifier)
	assert.Equal(t, 1.0, resp.Score)
	assert.Equal(t, map[string]string{"case_id": "2025123P6732"}, resp.Entities)

	require.Len(t, resp.Prechecks, 1)
	assert.Equal(t, "/cases/2025123P6732", resp.Prechecks[0].Path)
	require.Len(t, resp.Procedure, 1)
	assert.Equal(t, "/cases/2025123P6732/cancel", resp.Procedure[0].Path)

	assert.Contains(t, resp.Warnings, "cancellation cannot be undone")
	assert.Contains(t, resp.Warnings, "required entity reason was not found in the request")
	assert.NotContains(t, resp.Warnings, "required entity case_id was not found in the request")
}

func TestInterpret_HeuristicWithoutRunbook(t *testing.T) {
	o := newOrchestrator(nil)

	resp, err := o.Interpret(context.Background(), Request{Query: "cancel case 2025123P6732"})
	require.NoError(t, err)

	assert.Equal(t, classify.IntentCancelCase, resp.TaskID)
	assert.Equal(t, ClassifierHeuristic, resp.Classifier)
	assert.Equal(t, "2025123P6732", resp.Entities["case_id"])
	assert.Empty(t, resp.Steps())
	assert.Contains(t, resp.Warnings, "no runbook is loaded for task CANCEL_CASE")
}

func TestInterpret_HeuristicFillsEntities(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition(), statusDefinition()})

	resp, err := o.Interpret(context.Background(), Request{Query: "update status to pending 2024123P6731"})
	require.NoError(t, err)

	assert.Equal(t, classify.IntentUpdateCaseStatus, resp.TaskID)
	assert.Equal(t, ClassifierHeuristic, resp.Classifier)
	assert.Equal(t, map[string]string{"case_id": "2024123P6731", "status": "pending"}, resp.Entities)
	require.Len(t, resp.Procedure, 1)
	assert.Equal(t, "Moving 2024123P6731 to pending", resp.Procedure[0].Description)
}

func TestInterpret_ExplicitTask(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition()})

	resp, err := o.Interpret(context.Background(), Request{TaskID: "CANCEL_CASE", Query: "case 123"})
	require.NoError(t, err)
	assert.Equal(t, "CANCEL_CASE", resp.TaskID)
	assert.Equal(t, ClassifierExplicit, resp.Classifier)
	assert.Equal(t, "123", resp.Entities["case_id"])
}

func TestInterpret_ExplicitUnknownTask(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition()})

	resp, err := o.Interpret(context.Background(), Request{TaskID: "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, classify.TaskUnknown, resp.TaskID)
	assert.Contains(t, resp.Warnings, "task NOPE is not a known runbook")
}

func TestInterpret_Unknown(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition()})

	resp, err := o.Interpret(context.Background(), Request{Query: "what is the weather"})
	require.NoError(t, err)
	assert.Equal(t, classify.TaskUnknown, resp.TaskID)
	assert.Equal(t, ClassifierNone, resp.Classifier)
	assert.NotNil(t, resp.Procedure)
	assert.NotEmpty(t, resp.Warnings)
}

func TestInterpret_FallbackDisabled(t *testing.T) {
	o := newOrchestrator(nil, WithHeuristicFallback(false))

	resp, err := o.Interpret(context.Background(), Request{Query: "cancel case 2025123P6732"})
	require.NoError(t, err)
	assert.Equal(t, classify.TaskUnknown, resp.TaskID)
}

func TestInterpret_EmptyRequest(t *testing.T) {
	o := newOrchestrator(nil)

	_, err := o.Interpret(context.Background(), Request{Query: "   "})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestInterpret_Deterministic(t *testing.T) {
	o := newOrchestrator([]*runbook.UseCaseDefinition{cancelDefinition(), statusDefinition()})

	first, err := o.Interpret(context.Background(), Request{Query: "cancel case 2025123P6732"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := o.Interpret(context.Background(), Request{Query: "cancel case 2025123P6732"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestInterpret_HeuristicValuesPassValidation(t *testing.T) {
	strict := statusDefinition()
	strict.Extraction = map[string]runbook.EntityConfig{
		"case_id": {
			Patterns:   []string{`(\d{7}[a-z]\d{4})`},
			Validation: &runbook.ValidationConfig{Regex: `^\d{13}$`},
		},
		"status": {
			Patterns:   []string{`status\s+to\s+(\w+)`},
			Validation: &runbook.ValidationConfig{EnumValues: []string{"completed"}},
		},
	}

	o := newOrchestrator([]*runbook.UseCaseDefinition{strict})
	resp, err := o.Interpret(context.Background(), Request{Query: "update status to pending 2024123P6731"})
	require.NoError(t, err)

	assert.Equal(t, ClassifierHeuristic, resp.Classifier)
	assert.Empty(t, resp.Entities, "rejected values must not come back through the heuristic")
	warnings := strings.Join(resp.Warnings, "\n")
	assert.Contains(t, warnings, "for case_id was rejected")
	assert.Contains(t, warnings, "for status was rejected")
}

func TestInterpret_HeuristicValueFailsUnmatchedRule(t *testing.T) {
	strict := statusDefinition()
	strict.Extraction = map[string]runbook.EntityConfig{
		"status": {
			Patterns:   []string{`state\s+(\w+)`},
			Validation: &runbook.ValidationConfig{EnumValues: []string{"completed"}},
		},
	}

	o := newOrchestrator([]*runbook.UseCaseDefinition{strict})
	resp, err := o.Interpret(context.Background(), Request{Query: "update status to pending 2024123P6731"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"case_id": "2024123P6731"}, resp.Entities)
}

func TestInterpret_BundledRunbooks(t *testing.T) {
	reg := registry.New(registry.Config{Enabled: true, Dir: "../../runbooks"}, nil)
	require.NoError(t, reg.Load(context.Background()))
	o := New(reg, plan.New(expression.New()), classify.NewScorer(nil))

	tests := []struct {
		query    string
		taskID   string
		entities map[string]string
	}{
		{
			query:    "cancel case 2025123P6732",
			taskID:   "CANCEL_CASE",
			entities: map[string]string{"case_id": "2025123P6732"},
		},
		{
			query:    "update status to pending 2024123P6731",
			taskID:   "UPDATE_CASE_STATUS",
			entities: map[string]string{"case_id": "2024123P6731", "status": "pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := o.Interpret(context.Background(), Request{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.taskID, resp.TaskID)
			assert.Equal(t, tt.entities, resp.Entities)
			for _, w := range resp.Warnings {
				assert.NotContains(t, w, "was rejected")
				assert.NotContains(t, w, "was not found")
			}
		})
	}
}
