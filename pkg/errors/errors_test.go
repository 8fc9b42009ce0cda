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

package errors_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	opserrors "github.com/tombee/opspilot/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *opserrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &opserrors.ValidationError{
				Field:   "status",
				Message: "value \"bogus\" is not allowed",
			},
			wantMsg: "validation failed on status: value \"bogus\" is not allowed",
		},
		{
			name:    "without field",
			err:     &opserrors.ValidationError{Message: "query is empty"},
			wantMsg: "validation failed: query is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &opserrors.NotFoundError{Resource: "runbook", ID: "CANCEL_CASE"}
	if got := err.Error(); got != "runbook not found: CANCEL_CASE" {
		t.Errorf("NotFoundError.Error() = %q", got)
	}
	if !opserrors.IsNotFound(fmt.Errorf("lookup: %w", err)) {
		t.Error("IsNotFound should see through wrapping")
	}
}

func TestAccessError_Error(t *testing.T) {
	missing := &opserrors.AccessError{Header: "X-Role", Expected: "ops_admin"}
	if !strings.Contains(missing.Error(), "missing") {
		t.Errorf("expected missing header message, got %q", missing.Error())
	}

	mismatch := &opserrors.AccessError{Header: "X-Role", Expected: "ops_admin", Actual: "viewer"}
	if !strings.Contains(mismatch.Error(), `"viewer"`) {
		t.Errorf("expected actual value in message, got %q", mismatch.Error())
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &opserrors.APIError{StatusCode: 409, Body: `{"error":"case already cancelled"}`}
	msg := err.Error()
	if !strings.Contains(msg, "HTTP 409") || !strings.Contains(msg, "already cancelled") {
		t.Errorf("APIError.Error() = %q", msg)
	}

	custom := &opserrors.APIError{StatusCode: 200, Message: "response assertion failed"}
	if got := custom.Error(); got != "response assertion failed [HTTP 200]" {
		t.Errorf("APIError.Error() = %q", got)
	}
}

func TestTimeoutError_Unwrap(t *testing.T) {
	err := &opserrors.TimeoutError{
		Operation: "POST /cases/1/cancel",
		Duration:  2 * time.Second,
		Cause:     context.DeadlineExceeded,
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "timed out after 2s") {
		t.Errorf("TimeoutError.Error() = %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want opserrors.Kind
	}{
		{"nil", nil, ""},
		{"validation", &opserrors.ValidationError{Message: "x"}, opserrors.KindValidation},
		{"not found", &opserrors.NotFoundError{Resource: "step", ID: "9"}, opserrors.KindConfiguration},
		{"config", &opserrors.ConfigError{Reason: "x"}, opserrors.KindConfiguration},
		{"access", &opserrors.AccessError{Header: "X-Role"}, opserrors.KindAccess},
		{"timeout", &opserrors.TimeoutError{Operation: "GET"}, opserrors.KindTransport},
		{"transport", &opserrors.TransportError{Service: "lims", Cause: errors.New("refused")}, opserrors.KindTransport},
		{"api", &opserrors.APIError{StatusCode: 500}, opserrors.KindAPI},
		{"wrapped api", fmt.Errorf("step 3: %w", &opserrors.APIError{StatusCode: 500}), opserrors.KindAPI},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), opserrors.KindTransport},
		{"plain", errors.New("boom"), opserrors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := opserrors.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		original := errors.New("original error")
		wrapped := opserrors.Wrap(original, "additional context")

		if !strings.Contains(wrapped.Error(), "additional context") {
			t.Errorf("wrapped error should contain context, got: %s", wrapped)
		}
		if !errors.Is(wrapped, original) {
			t.Error("wrapped error should match original with errors.Is")
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if wrapped := opserrors.Wrap(nil, "context"); wrapped != nil {
			t.Errorf("Wrap(nil, _) should return nil, got: %v", wrapped)
		}
		if wrapped := opserrors.Wrapf(nil, "context %d", 1); wrapped != nil {
			t.Errorf("Wrapf(nil, _) should return nil, got: %v", wrapped)
		}
	})
}
