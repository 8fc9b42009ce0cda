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
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UseCaseDefinition is the root declarative unit for one supported task.
type UseCaseDefinition struct {
	// ID is the unique, immutable task identifier (e.g. "CANCEL_CASE")
	ID string `yaml:"id" json:"id"`

	// Name is a short human-readable title
	Name string `yaml:"name" json:"name"`

	// Description explains what the task does
	Description string `yaml:"description" json:"description"`

	// Category groups related tasks (e.g. "case-management")
	Category string `yaml:"category" json:"category"`

	// DownstreamServiceOverride routes HTTP steps to a service other than the default
	DownstreamServiceOverride string `yaml:"downstreamServiceOverride,omitempty" json:"downstreamServiceOverride,omitempty"`

	// Classification holds the keyword rules used by the declarative scorer
	Classification *Classification `yaml:"classification" json:"classification"`

	// Extraction maps entity names to their extraction rules
	Extraction map[string]EntityConfig `yaml:"extraction,omitempty" json:"extraction,omitempty"`

	// Execution holds the ordered steps and execution policy
	Execution ExecutionConfig `yaml:"execution" json:"execution"`

	// Rollback holds steps merged into the step space under the rollback stage
	Rollback *RollbackConfig `yaml:"rollback,omitempty" json:"rollback,omitempty"`

	// Warnings are surfaced with every response for this task
	Warnings []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`

	// Metadata is descriptive only
	Metadata Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// Source is the file the definition was loaded from
	Source string `yaml:"-" json:"source,omitempty"`
}

// Classification configures keyword scoring for a definition.
type Classification struct {
	// Keywords are literal, case-insensitive substrings worth 1.0 each
	Keywords []string `yaml:"keywords" json:"keywords"`

	// Synonyms map a keyword to alternate literal forms worth 0.5 each
	Synonyms map[string][]string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`

	// MinConfidence is the score floor below which the definition is ineligible
	MinConfidence float64 `yaml:"minConfidence,omitempty" json:"minConfidence,omitempty"`

	// RequiredEntities should be present after extraction
	RequiredEntities []string `yaml:"requiredEntities,omitempty" json:"requiredEntities,omitempty"`
}

// EntityConfig describes how one named entity is pulled out of a query.
type EntityConfig struct {
	// Patterns are tried in order; the first capture group of the first match wins
	Patterns []string `yaml:"patterns" json:"patterns"`

	// Required entities produce a caller-visible warning when missing
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Transform is applied to the matched value before validation
	Transform Transform `yaml:"transform,omitempty" json:"transform,omitempty"`

	// Validation is an optional rule the transformed value must satisfy
	Validation *ValidationConfig `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// ValidationConfig is a rule applied to an extracted value.
type ValidationConfig struct {
	// Regex must match the value when set
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`

	// EnumValues lists allowed values, compared case-insensitively
	EnumValues []string `yaml:"enumValues,omitempty" json:"enumValues,omitempty"`

	// ErrorMessage is reported when the rule fails
	ErrorMessage string `yaml:"errorMessage,omitempty" json:"errorMessage,omitempty"`
}

// Transform is a value transformation applied after a pattern match.
type Transform string

const (
	TransformNone      Transform = "none"
	TransformLowercase Transform = "lowercase"
	TransformUppercase Transform = "uppercase"
	TransformTrim      Transform = "trim"
)

// Apply transforms value. Unknown transforms behave like TransformNone.
func (t Transform) Apply(value string) string {
	switch Transform(strings.ToLower(string(t))) {
	case TransformLowercase:
		return strings.ToLower(value)
	case TransformUppercase:
		return strings.ToUpper(value)
	case TransformTrim:
		return strings.TrimSpace(value)
	default:
		return value
	}
}

// ExecutionConfig holds the execution policy and the ordered steps.
type ExecutionConfig struct {
	// Timeout bounds a single step execution (overrides the service timeout when shorter)
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// RetryPolicy configures retries of downstream calls
	RetryPolicy *RetryPolicy `yaml:"retryPolicy,omitempty" json:"retryPolicy,omitempty"`

	// Steps are the operational steps in declaration order
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// RetryPolicy configures retries of downstream HTTP calls.
type RetryPolicy struct {
	// MaxAttempts counts the initial try (1 = no retries)
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`

	// BackoffMs is the initial delay between attempts in milliseconds
	BackoffMs int `yaml:"backoffMs" json:"backoffMs"`
}

// Backoff returns the initial retry delay.
func (r *RetryPolicy) Backoff() time.Duration {
	if r == nil {
		return 0
	}
	return time.Duration(r.BackoffMs) * time.Millisecond
}

// Retries returns the number of retries after the initial attempt.
func (r *RetryPolicy) Retries() int {
	if r == nil || r.MaxAttempts <= 1 {
		return 0
	}
	return r.MaxAttempts - 1
}

// RollbackConfig holds the steps that undo the operation.
type RollbackConfig struct {
	// Enabled turns rollback steps on; when omitted, declared steps are used
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Steps are the rollback steps in declaration order
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// Active reports whether the rollback steps belong to the step space.
func (r *RollbackConfig) Active() bool {
	if r == nil || len(r.Steps) == 0 {
		return false
	}
	return r.Enabled == nil || *r.Enabled
}

// Metadata is descriptive information with no behavioral effect.
type Metadata struct {
	Author       string   `yaml:"author,omitempty" json:"author,omitempty"`
	LastModified string   `yaml:"lastModified,omitempty" json:"lastModified,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Duration is a time.Duration that decodes from "30s" style strings or a
// bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	value := strings.TrimSpace(node.Value)
	if value == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
