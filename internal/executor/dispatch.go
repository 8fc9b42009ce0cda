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

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/httpclient"
	"github.com/tombee/opspilot/pkg/runbook"
)

func (e *Engine) checkHeader(a runbook.HeaderCheck, caller Caller, values map[string]string, res *Result) error {
	expected := runbook.Resolve(a.Expected, values)
	actual := caller.Header(a.Header)

	match := actual != "" && actual == expected
	if !a.CaseSensitive {
		match = actual != "" && strings.EqualFold(actual, expected)
	}
	if !match {
		return &errors.AccessError{Header: a.Header, Expected: expected, Actual: actual}
	}

	res.StatusCode = http.StatusOK
	res.ResponseBody = mustJSON(map[string]interface{}{
		"valid":  true,
		"header": a.Header,
		"value":  actual,
	})
	return nil
}

func (e *Engine) validateEntity(a runbook.EntityValidation, def *runbook.UseCaseDefinition, entities map[string]string, res *Result) error {
	value, ok := entities[a.Entity]
	if !ok || value == "" {
		return &errors.ValidationError{
			Field:      a.Entity,
			Message:    fmt.Sprintf("entity %s was not provided", a.Entity),
			Suggestion: "include the value in the request",
		}
	}

	rule := a.Rule
	if rule == nil {
		rule = def.EntityRule(a.Entity)
	}
	if err := e.extractor.ValidateValue(value, rule); err != nil {
		return err
	}

	res.ResponseBody = mustJSON(map[string]interface{}{
		"valid":  true,
		"entity": a.Entity,
		"value":  value,
	})
	return nil
}

// call builds and sends the downstream request. The idempotency key is
// generated once per execution so retries of the same execution share it.
func (e *Engine) call(ctx context.Context, svc *service, def *runbook.UseCaseDefinition, a runbook.HTTPCall, caller Caller, values map[string]string, res *Result) error {
	path := runbook.Resolve(a.Path, values)
	target := svc.baseURL + "/" + strings.TrimLeft(path, "/")
	operation := fmt.Sprintf("%s %s", a.Verb, path)

	var payload []byte
	if a.Body != nil {
		data, err := json.Marshal(runbook.ResolveBody(a.Body, values))
		if err != nil {
			return &errors.ValidationError{Field: "body", Message: fmt.Sprintf("request body cannot be encoded: %v", err)}
		}
		payload = data
	}

	timeout := svc.timeout
	if t := def.Execution.Timeout.Std(); t > 0 && t < timeout {
		timeout = t
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if rp := def.Execution.RetryPolicy; rp != nil && rp.MaxAttempts > 0 {
		callCtx = httpclient.WithRetryPolicy(callCtx, httpclient.RetryPolicy{
			Attempts: rp.MaxAttempts,
			Backoff:  rp.Backoff(),
		})
	}

	if svc.limiter != nil {
		waitStart := time.Now()
		err := svc.limiter.Wait(callCtx)
		rateLimitWaitSeconds.WithLabelValues(svc.name).Observe(time.Since(waitStart).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			// The limiter fails fast when the wait would outlast the deadline.
			return &errors.TimeoutError{Operation: operation, Duration: timeout, Cause: err}
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, string(a.Verb), target, body)
	if err != nil {
		return &errors.ConfigError{
			Key:    "services." + svc.name + ".base_url",
			Reason: fmt.Sprintf("cannot build request for %s", operation),
			Cause:  err,
		}
	}

	caller.forward(httpReq.Header)
	httpReq.Header.Set(httpclient.HeaderIdempotencyKey, uuid.NewString())
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range runbook.ResolveHeaders(a.Headers, values) {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return e.transportError(ctx, callCtx, svc, operation, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	if err != nil {
		return e.transportError(ctx, callCtx, svc, operation, timeout, err)
	}
	respBody := string(raw)
	res.StatusCode = resp.StatusCode
	res.ResponseBody = respBody

	if !statusAccepted(resp.StatusCode, a.ExpectedStatus) {
		msg := ""
		if a.ExpectedStatus != 0 {
			msg = fmt.Sprintf("expected status %d", a.ExpectedStatus)
		}
		return &errors.APIError{StatusCode: resp.StatusCode, Body: respBody, Message: msg}
	}

	if a.ResponseAssert != "" {
		if err := e.asserter.Assert(ctx, a.ResponseAssert, raw); err != nil {
			return &errors.APIError{StatusCode: resp.StatusCode, Body: respBody, Message: err.Error()}
		}
	}

	return nil
}

// transportError classifies a failed dispatch. Cancellation by the caller
// wins over a timeout, which wins over any other network failure.
func (e *Engine) transportError(parent, callCtx context.Context, svc *service, operation string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return errCancelled
	}
	var netErr net.Error
	if callCtx.Err() == context.DeadlineExceeded || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &errors.TimeoutError{Operation: operation, Duration: timeout, Cause: err}
	}
	return &errors.TransportError{Service: svc.name, Cause: err}
}

func statusAccepted(status, expected int) bool {
	if expected != 0 {
		return status == expected
	}
	return status >= 200 && status < 300
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
