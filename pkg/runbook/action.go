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
	"fmt"
	"strings"

	"github.com/tombee/opspilot/pkg/errors"
)

// Action is the method-specific view of a step. Exactly one of
// LocalMessage, HeaderCheck, EntityValidation or HTTPCall.
type Action interface {
	// Method returns the step method the action was built from.
	Method() Method

	action()
}

// LocalMessage shows a message to the operator. Never reaches the network.
type LocalMessage struct {
	Message string
}

// HeaderCheck verifies that a caller header carries an expected value.
type HeaderCheck struct {
	Header        string
	Expected      string
	CaseSensitive bool
}

// EntityValidation re-checks an extracted entity against a rule. Rule may
// be nil, in which case the definition's extraction rule applies.
type EntityValidation struct {
	Entity string
	Rule   *ValidationConfig
}

// HTTPCall is one downstream request.
type HTTPCall struct {
	Verb           Method
	Path           string
	Body           map[string]interface{}
	Headers        map[string]string
	ExpectedStatus int
	ResponseAssert string
}

func (LocalMessage) Method() Method     { return MethodLocalMessage }
func (HeaderCheck) Method() Method      { return MethodHeaderCheck }
func (EntityValidation) Method() Method { return MethodEntityValidation }
func (h HTTPCall) Method() Method       { return h.Verb }

func (LocalMessage) action()     {}
func (HeaderCheck) action()      {}
func (EntityValidation) action() {}
func (HTTPCall) action()         {}

// Action builds the variant record for the step, checking the fields the
// method requires.
func (s *StepDefinition) Action() (Action, error) {
	method, ok := ParseMethod(string(s.Method))
	if !ok {
		return nil, &errors.ValidationError{
			Field:      "method",
			Message:    fmt.Sprintf("unknown method %q", s.Method),
			Suggestion: "use LOCAL_MESSAGE, HEADER_CHECK, ENTITY_VALIDATION, GET, POST, PUT, PATCH or DELETE",
		}
	}

	switch method {
	case MethodLocalMessage:
		msg := s.LocalMessage
		if msg == "" {
			msg = s.Description
		}
		if msg == "" {
			return nil, &errors.ValidationError{
				Field:      "localMessage",
				Message:    "LOCAL_MESSAGE step needs a localMessage or description",
				Suggestion: "add a localMessage to the step",
			}
		}
		return LocalMessage{Message: msg}, nil

	case MethodHeaderCheck:
		header := strings.TrimSpace(s.Path)
		if header == "" {
			return nil, &errors.ValidationError{
				Field:      "path",
				Message:    "HEADER_CHECK step needs the header name in path",
				Suggestion: "set path to the header to verify, e.g. X-Role",
			}
		}
		return HeaderCheck{
			Header:        header,
			Expected:      s.ExpectedResponse,
			CaseSensitive: s.CaseSensitive,
		}, nil

	case MethodEntityValidation:
		entity := s.Entity
		if entity == "" {
			entity = strings.TrimSpace(s.Path)
		}
		if entity == "" {
			return nil, &errors.ValidationError{
				Field:      "entity",
				Message:    "ENTITY_VALIDATION step needs an entity name",
				Suggestion: "set entity to the extracted entity to validate",
			}
		}
		return EntityValidation{Entity: entity, Rule: s.Validation}, nil

	default:
		if strings.TrimSpace(s.Path) == "" {
			return nil, &errors.ValidationError{
				Field:      "path",
				Message:    fmt.Sprintf("%s step needs a path", method),
				Suggestion: "set path to the downstream API path",
			}
		}
		return HTTPCall{
			Verb:           method,
			Path:           s.Path,
			Body:           s.Body,
			Headers:        s.Headers,
			ExpectedStatus: s.ExpectedStatus,
			ResponseAssert: s.ResponseAssert,
		}, nil
	}
}
