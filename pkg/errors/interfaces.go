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

// Kind is the failure taxonomy shared by every component.
type Kind string

const (
	// KindConfiguration covers unknown downstream targets, malformed
	// definitions and missing steps. Detected without touching the network.
	KindConfiguration Kind = "CONFIGURATION"

	// KindValidation covers entities failing a regex or enum rule and
	// required entities that are missing.
	KindValidation Kind = "VALIDATION"

	// KindAccess covers header and role check failures.
	KindAccess Kind = "ACCESS"

	// KindTransport covers connection refused, timeouts and DNS failures.
	KindTransport Kind = "TRANSPORT"

	// KindAPI covers non-success downstream responses.
	KindAPI Kind = "API"

	// KindUnknown is anything unclassified.
	KindUnknown Kind = "UNKNOWN"
)

// UserVisibleError defines errors that should be displayed to end users
// with user-friendly messages and actionable suggestions.
type UserVisibleError interface {
	error

	// IsUserVisible returns true if this error should be shown to users.
	IsUserVisible() bool

	// UserMessage returns a user-friendly error message.
	UserMessage() string

	// Suggestion returns actionable guidance for resolving the error.
	// Returns empty string if no suggestion is available.
	Suggestion() string
}

// ErrorClassifier is implemented by every typed error in this package so
// callers can branch on the failure kind without type switches.
type ErrorClassifier interface {
	error

	// Kind returns the failure category.
	Kind() Kind
}
