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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents entity or definition validation failures.
// Use this for values that fail a regex or enum rule, missing required
// entities, and malformed runbook definitions.
type ValidationError struct {
	// Field identifies which entity or definition field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Kind implements ErrorClassifier.
func (e *ValidationError) Kind() Kind { return KindValidation }

// NotFoundError represents a resource not found error.
// Use this when a runbook, step or downstream service does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "runbook", "step", "service")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Kind implements ErrorClassifier. A missing runbook, step or service is a
// configuration problem, detected before any network call.
func (e *NotFoundError) Kind() Kind { return KindConfiguration }

// ConfigError represents configuration problems.
// Use this for configuration file errors, unknown downstream targets, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "services.lims.base_url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Kind implements ErrorClassifier.
func (e *ConfigError) Kind() Kind { return KindConfiguration }

// AccessError represents a failed header or role check.
type AccessError struct {
	// Header is the caller header that was checked
	Header string

	// Expected is the value the header had to carry
	Expected string

	// Actual is the value the caller supplied (empty when absent)
	Actual string
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("access denied: header %s is missing (expected %q)", e.Header, e.Expected)
	}
	return fmt.Sprintf("access denied: header %s is %q (expected %q)", e.Header, e.Actual, e.Expected)
}

// Kind implements ErrorClassifier.
func (e *AccessError) Kind() Kind { return KindAccess }

// TimeoutError represents operation timeouts.
// Use this when a downstream call exceeds its per-service timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "POST /cases/123/cancel")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Kind implements ErrorClassifier.
func (e *TimeoutError) Kind() Kind { return KindTransport }

// TransportError represents a failure to reach the downstream service
// (connection refused, DNS failure, reset).
type TransportError struct {
	// Service is the downstream target name
	Service string

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Kind implements ErrorClassifier.
func (e *TransportError) Kind() Kind { return KindTransport }

// APIError represents a downstream response that was not a success.
// Body carries the raw downstream response for diagnostics.
type APIError struct {
	// StatusCode is the HTTP status returned by the downstream service
	StatusCode int

	// Body is the raw response body
	Body string

	// Message overrides the default description (e.g., a failed response assertion)
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "downstream returned a non-success status"
	}
	if e.Body != "" {
		return fmt.Sprintf("%s [HTTP %d]: %s", msg, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
}

// Kind implements ErrorClassifier.
func (e *APIError) Kind() Kind { return KindAPI }
