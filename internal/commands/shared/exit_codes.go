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


package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	opserrors "github.com/tombee/opspilot/pkg/errors"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitStepFailed     = 1
	ExitInvalidRunbook = 2
	ExitBadInput       = 3
	ExitConfigError    = 4
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewStepFailedError reports a step that ran and failed.
func NewStepFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitStepFailed, Message: msg, Cause: cause}
}

// NewInvalidRunbookError reports definitions that failed to parse or validate.
func NewInvalidRunbookError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidRunbook, Message: msg, Cause: cause}
}

// NewBadInputError reports malformed command arguments.
func NewBadInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitBadInput, Message: msg, Cause: cause}
}

// NewConfigError reports a configuration that could not be loaded.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitStepFailed
}

// HandleExitError prints err with any suggestion it carries and exits.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	// An ExitError without a message has already been reported.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Message != "" || exitErr.Cause != nil {
		PrintError(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}

// PrintError writes err and its suggestion, if any, to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())

	var verr *opserrors.ValidationError
	if errors.As(err, &verr) && verr.Suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", verr.Suggestion)
		return
	}

	// Walk the chain to the first user-visible error.
	for e := err; e != nil; e = errors.Unwrap(e) {
		userErr, ok := e.(opserrors.UserVisibleError)
		if !ok {
			continue
		}
		if userErr.IsUserVisible() && userErr.Suggestion() != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", userErr.Suggestion())
		}
		return
	}
}
