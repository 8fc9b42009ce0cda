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
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Intents recognised by the heuristic classifier.
const (
	IntentCancelCase       = "CANCEL_CASE"
	IntentUpdateCaseStatus = "UPDATE_CASE_STATUS"
)

// HeuristicResult is the outcome of heuristic classification.
type HeuristicResult struct {
	Intent     string `json:"intent"`
	Normalized string `json:"normalized"`
	CaseID     string `json:"caseId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Entities returns the entities the heuristic found, keyed the way use case
// definitions name them.
func (r HeuristicResult) Entities() map[string]string {
	out := make(map[string]string, 2)
	if r.CaseID != "" {
		out["case_id"] = r.CaseID
	}
	if r.Status != "" {
		out["status"] = r.Status
	}
	return out
}

var (
	fillerPattern   = wordsPattern("please", "kindly", "can you", "could you", "would you", "i want to", "i need to")
	articlePattern  = wordsPattern("a", "an", "the")
	caseIDPhrase    = regexp.MustCompile(`\bcase\s+id\b`)
	whitespace      = regexp.MustCompile(`\s+`)
	caseIDPattern   = regexp.MustCompile(`\b\d{3,}[A-Za-z]?\d*\b`)
	cancelPattern   = wordsPattern("cancel", "abort", "delete", "remove", "terminate", "drop", "stop case", "cancellation")
	updatePhrases   = wordsPattern("update status", "change status", "set status", "mark as", "move to", "transition to", "status to")
	actionVerbs     = wordsPattern("set", "mark", "change", "move", "transition", "update", "to")
	statusVocabRule = wordsPattern(statusVocabulary...)
)

// statusVocabulary is ordered longest first so multi-word forms win.
var statusVocabulary = []string{
	"pending pathologist review",
	"pathologist review",
	"under review",
	"in progress",
	"on hold",
	"signed out",
	"accessioning",
	"accessioned",
	"in review",
	"completed",
	"cancelled",
	"canceled",
	"reviewed",
	"received",
	"pending",
	"grossing",
	"complete",
	"review",
	"closed",
	"active",
	"hold",
	"open",
}

func wordsPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(w), ` `, `\s+`)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Normalize lowercases query and strips filler words and articles so the
// keyword rules see only the meaningful terms.
func Normalize(query string) string {
	s := strings.ToLower(norm.NFKC.String(query))
	s = fillerPattern.ReplaceAllString(s, " ")
	s = articlePattern.ReplaceAllString(s, " ")
	s = caseIDPhrase.ReplaceAllString(s, "case")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Heuristic classifies query with fixed keyword rules. The rules apply in
// order:
//
//  1. cancellation words, unless status update phrasing is also present
//  2. explicit status update phrasing
//  3. a status word together with an action verb
//  4. a case id together with a status word
//
// Anything else is TaskUnknown.
func Heuristic(query string) HeuristicResult {
	normalized := Normalize(query)
	res := HeuristicResult{
		Intent:     TaskUnknown,
		Normalized: normalized,
		CaseID:     caseIDPattern.FindString(norm.NFKC.String(query)),
	}

	if status := statusVocabRule.FindString(normalized); status != "" {
		res.Status = NormalizeStatus(status)
	}

	hasUpdatePhrase := updatePhrases.MatchString(normalized)

	switch {
	case cancelPattern.MatchString(normalized) && !hasUpdatePhrase:
		res.Intent = IntentCancelCase
	case hasUpdatePhrase:
		res.Intent = IntentUpdateCaseStatus
	case res.Status != "" && actionVerbs.MatchString(normalized):
		res.Intent = IntentUpdateCaseStatus
	case res.CaseID != "" && res.Status != "":
		res.Intent = IntentUpdateCaseStatus
	}

	return res
}
