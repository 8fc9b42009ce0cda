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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tombee/opspilot/pkg/runbook"
)

func def(id string, c runbook.Classification) *runbook.UseCaseDefinition {
	return &runbook.UseCaseDefinition{ID: id, Classification: &c}
}

func TestScorer_Classify(t *testing.T) {
	cancel := def("CANCEL_CASE", runbook.Classification{
		Keywords: []string{"cancel", "case"},
		Synonyms: map[string][]string{"cancel": {"abort", "terminate"}},
	})
	update := def("UPDATE_CASE_STATUS", runbook.Classification{
		Keywords: []string{"status", "case"},
		Synonyms: map[string][]string{"status": {"state"}},
	})
	strict := def("STRICT", runbook.Classification{
		Keywords:      []string{"case"},
		MinConfidence: 2,
	})

	tests := []struct {
		name  string
		query string
		defs  []*runbook.UseCaseDefinition
		want  string
		score float64
	}{
		{"keywords", "Cancel case 123", []*runbook.UseCaseDefinition{update, cancel}, "CANCEL_CASE", 2},
		{"synonyms count half", "abort case 123", []*runbook.UseCaseDefinition{cancel, update}, "CANCEL_CASE", 1.5},
		{"tie keeps first", "case 123", []*runbook.UseCaseDefinition{update, cancel}, "UPDATE_CASE_STATUS", 1},
		{"tie keeps first reversed", "case 123", []*runbook.UseCaseDefinition{cancel, update}, "CANCEL_CASE", 1},
		{"below floor is ineligible", "case", []*runbook.UseCaseDefinition{strict}, TaskUnknown, 0},
		{"no hits", "hello world", []*runbook.UseCaseDefinition{cancel, update}, TaskUnknown, 0},
		{"empty query", "   ", []*runbook.UseCaseDefinition{cancel}, TaskUnknown, 0},
		{"no definitions", "cancel case", nil, TaskUnknown, 0},
	}

	s := NewScorer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := s.Classify(tt.query, tt.defs)
			assert.Equal(t, tt.want, m.TaskID)
			assert.InDelta(t, tt.score, m.Score, 0.0001)
		})
	}
}

func TestScorer_Deterministic(t *testing.T) {
	defs := []*runbook.UseCaseDefinition{
		def("A", runbook.Classification{Keywords: []string{"hold"}, Synonyms: map[string][]string{"x": {"pause"}, "y": {"freeze"}}}),
		def("B", runbook.Classification{Keywords: []string{"pause"}}),
	}
	s := NewScorer(nil)
	first := s.Classify("pause and freeze the hold", defs)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, s.Classify("pause and freeze the hold", defs))
	}
	assert.Equal(t, "A", first.TaskID)
	assert.Equal(t, []string{"pause", "freeze"}, first.Synonyms)
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		query  string
		intent string
		caseID string
		status string
	}{
		{"cancel case 2025123P6732", IntentCancelCase, "2025123P6732", ""},
		{"update status to pending 2024123P6731", IntentUpdateCaseStatus, "2024123P6731", "pending"},
		{"Please could you terminate the case id 5551234", IntentCancelCase, "5551234", ""},
		{"cancel the hold and change status to active for 123456", IntentUpdateCaseStatus, "123456", "on_hold"},
		{"mark 998877 on hold", IntentUpdateCaseStatus, "998877", "on_hold"},
		{"998877 pathologist review", IntentUpdateCaseStatus, "998877", "pathologist_review"},
		{"how is the weather", TaskUnknown, "", ""},
		{"candelabra 12", TaskUnknown, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := Heuristic(tt.query)
			assert.Equal(t, tt.intent, res.Intent)
			assert.Equal(t, tt.caseID, res.CaseID)
			assert.Equal(t, tt.status, res.Status)
		})
	}
}

func TestHeuristic_Entities(t *testing.T) {
	res := Heuristic("update status to pending 2024123P6731")
	assert.Equal(t, map[string]string{"case_id": "2024123P6731", "status": "pending"}, res.Entities())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cancel case 42", Normalize("  Please   cancel the CASE ID 42 "))
	assert.Equal(t, "i would like case", Normalize("I would like a case"))
	// fullwidth digits fold under NFKC
	assert.Equal(t, "cancel case 123", Normalize("cancel case １２３"))
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"Pending":                    "pending",
		"In Progress":                "in_progress",
		"accessioned":                "accessioning",
		"Pending Pathologist Review": "pathologist_review",
		"under review":               "under_review",
		"review":                     "under_review",
		"ON HOLD":                    "on_hold",
		"hold":                       "on_hold",
		"signed-out":                 "signed_out",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), "status %q", in)
	}
}
