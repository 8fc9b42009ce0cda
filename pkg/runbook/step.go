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
	"strings"
)

// StepDefinition is one declared action within a use case.
//
// The struct mirrors the YAML document. Callers that act on a step should
// go through Action, which returns a variant record with only the fields
// that make sense for the step's method.
type StepDefinition struct {
	// StepNumber is the 1-indexed execution address, unique within a definition
	StepNumber int `yaml:"stepNumber" json:"stepNumber"`

	// Name is a short label
	Name string `yaml:"name" json:"name"`

	// Description may contain {entity} placeholders
	Description string `yaml:"description" json:"description"`

	// StepType is the stage: prechecks, procedure, postchecks or rollback
	StepType string `yaml:"stepType,omitempty" json:"stepType,omitempty"`

	// Method selects the step variant (LOCAL_MESSAGE, HEADER_CHECK, ENTITY_VALIDATION, GET, ...)
	Method Method `yaml:"method" json:"method"`

	// Path is the API path, or the header name for HEADER_CHECK
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Body is the request payload; string values may hold placeholders
	Body map[string]interface{} `yaml:"body,omitempty" json:"body,omitempty"`

	// Headers are static request headers; values may hold placeholders
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// ExpectedStatus is the HTTP status the step must return (0 = any 2xx)
	ExpectedStatus int `yaml:"expectedStatus,omitempty" json:"expectedStatus,omitempty"`

	// ExpectedResponse describes the expected outcome, or the required header value for HEADER_CHECK
	ExpectedResponse string `yaml:"expectedResponse,omitempty" json:"expectedResponse,omitempty"`

	// LocalMessage is the message shown by LOCAL_MESSAGE steps
	LocalMessage string `yaml:"localMessage,omitempty" json:"localMessage,omitempty"`

	// AutoExecutable marks steps that may run without operator confirmation
	AutoExecutable bool `yaml:"autoExecutable,omitempty" json:"autoExecutable,omitempty"`

	// Optional steps may be skipped by the operator
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`

	// ErrorHandling says what the operator should do when the step fails
	ErrorHandling *ErrorHandling `yaml:"errorHandling,omitempty" json:"errorHandling,omitempty"`

	// CaseSensitive makes HEADER_CHECK compare values exactly
	CaseSensitive bool `yaml:"caseSensitive,omitempty" json:"caseSensitive,omitempty"`

	// Entity names the entity checked by ENTITY_VALIDATION (defaults to Path)
	Entity string `yaml:"entity,omitempty" json:"entity,omitempty"`

	// Validation is an inline rule for ENTITY_VALIDATION
	Validation *ValidationConfig `yaml:"validation,omitempty" json:"validation,omitempty"`

	// Condition is a boolean expression over extracted entities; false omits the step
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// ResponseAssert is a jq expression that must be truthy against the JSON response
	ResponseAssert string `yaml:"responseAssert,omitempty" json:"responseAssert,omitempty"`
}

// ErrorHandling describes the operator's response to a failed step.
type ErrorHandling struct {
	OnFailure FailureAction `yaml:"onFailure" json:"onFailure"`
	Message   string        `yaml:"message,omitempty" json:"message,omitempty"`
}

// Stage returns the step's stage. Unrecognized or empty types are procedure.
func (s *StepDefinition) Stage() Stage {
	return ParseStage(s.StepType)
}

// FailureAction returns the declared failure handling, defaulting to abort.
func (s *StepDefinition) FailureAction() FailureAction {
	if s.ErrorHandling == nil {
		return FailureAbort
	}
	return ParseFailureAction(string(s.ErrorHandling.OnFailure))
}

// FailureMessage returns the declared failure message, if any.
func (s *StepDefinition) FailureMessage() string {
	if s.ErrorHandling == nil {
		return ""
	}
	return s.ErrorHandling.Message
}

// Method is the closed set of step methods.
type Method string

const (
	MethodLocalMessage     Method = "LOCAL_MESSAGE"
	MethodHeaderCheck      Method = "HEADER_CHECK"
	MethodEntityValidation Method = "ENTITY_VALIDATION"
	MethodGet              Method = "GET"
	MethodPost             Method = "POST"
	MethodPut              Method = "PUT"
	MethodPatch            Method = "PATCH"
	MethodDelete           Method = "DELETE"
)

var knownMethods = map[Method]bool{
	MethodLocalMessage:     true,
	MethodHeaderCheck:      true,
	MethodEntityValidation: true,
	MethodGet:              true,
	MethodPost:             true,
	MethodPut:              true,
	MethodPatch:            true,
	MethodDelete:           true,
}

// ParseMethod normalizes a method name. ok is false for unknown methods.
func ParseMethod(s string) (m Method, ok bool) {
	m = Method(strings.ToUpper(strings.TrimSpace(s)))
	return m, knownMethods[m]
}

// IsLocal reports whether the method is handled without a network call.
func (m Method) IsLocal() bool {
	switch m {
	case MethodLocalMessage, MethodHeaderCheck, MethodEntityValidation:
		return true
	default:
		return false
	}
}

// Stage is the lifecycle group a step belongs to.
type Stage string

const (
	StagePrechecks  Stage = "prechecks"
	StageProcedure  Stage = "procedure"
	StagePostchecks Stage = "postchecks"
	StageRollback   Stage = "rollback"
)

// Stages lists the stages in presentation order.
var Stages = []Stage{StagePrechecks, StageProcedure, StagePostchecks, StageRollback}

// ParseStage maps a declared step type to a stage. Matching is
// case-insensitive, accepts singular aliases, and defaults to procedure.
func ParseStage(s string) Stage {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prechecks", "precheck":
		return StagePrechecks
	case "postchecks", "postcheck":
		return StagePostchecks
	case "rollback":
		return StageRollback
	default:
		return StageProcedure
	}
}

// FailureAction is what should happen when a step fails.
type FailureAction string

const (
	FailureAbort    FailureAction = "abort"
	FailureRollback FailureAction = "rollback"
	FailureAlert    FailureAction = "alert"
	FailureContinue FailureAction = "continue"
)

// ParseFailureAction normalizes a failure action, defaulting to abort.
func ParseFailureAction(s string) FailureAction {
	switch FailureAction(strings.ToLower(strings.TrimSpace(s))) {
	case FailureRollback:
		return FailureRollback
	case FailureAlert:
		return FailureAlert
	case FailureContinue:
		return FailureContinue
	default:
		return FailureAbort
	}
}
