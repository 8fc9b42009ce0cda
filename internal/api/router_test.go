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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/executor"
	"github.com/tombee/opspilot/internal/orchestrator"
	"github.com/tombee/opspilot/internal/registry"
	"github.com/tombee/opspilot/internal/tracing"
	"github.com/tombee/opspilot/pkg/classify"
	"github.com/tombee/opspilot/pkg/expression"
	"github.com/tombee/opspilot/pkg/plan"
)

const cancelRunbook = `
id: CANCEL_CASE
name: Cancel case
classification:
  keywords: [cancel]
extraction:
  case_id:
    patterns: ['case\s+(\d{3,}[a-z]?\d*)']
    required: true
execution:
  steps:
    - stepNumber: 1
      name: Announce
      method: LOCAL_MESSAGE
      localMessage: Cancelling {case_id}
    - stepNumber: 2
      name: Cancel
      method: POST
      path: /cases/{case_id}/cancel
      body:
        actor: "{currentUser}"
`

type fixture struct {
	router     *Router
	downstream *httptest.Server

	mu        sync.Mutex
	lastActor string
}

func (f *fixture) actor() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.downstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastActor = body["actor"]
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"cancelled":true}`))
	}))
	t.Cleanup(f.downstream.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cancel.yaml"), []byte(cancelRunbook), 0o600))
	reg := registry.New(registry.Config{Enabled: true, Dir: dir}, nil)
	require.NoError(t, reg.Load(context.Background()))

	orch := orchestrator.New(reg, plan.New(expression.New()), classify.NewScorer(nil))
	exec, err := executor.New(reg, map[string]executor.Service{
		"lims": {BaseURL: f.downstream.URL, Timeout: 5 * time.Second},
	}, nil, executor.WithDefaultService("lims"))
	require.NoError(t, err)

	f.router = NewRouter(RouterConfig{Version: "test", MetricsPath: "/metrics"}, orch, exec, reg, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestInterpret(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/interpret", map[string]string{"query": "cancel case 2025123P6732"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(tracing.HeaderCorrelationID))

	var resp struct {
		TaskID     string            `json:"taskId"`
		Classifier string            `json:"classifier"`
		Entities   map[string]string `json:"entities"`
		Procedure  []plan.Step       `json:"procedure"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CANCEL_CASE", resp.TaskID)
	assert.Equal(t, orchestrator.ClassifierDeclarative, resp.Classifier)
	assert.Equal(t, "2025123P6732", resp.Entities["case_id"])
	require.Len(t, resp.Procedure, 2)
	assert.Equal(t, "/cases/2025123P6732/cancel", resp.Procedure[1].Path)
}

func TestInterpret_BadRequest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/interpret", map[string]string{"query": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecute(t *testing.T) {
	f := newFixture(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "u-1",
		"preferred_username": "alice",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/v1/execute", ExecuteRequest{
		TaskID:     "CANCEL_CASE",
		StepNumber: 2,
		Entities:   map[string]string{"case_id": "1"},
	}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)

	var res executor.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, `{"cancelled":true}`, res.ResponseBody)
	assert.Equal(t, "alice", f.actor())
}

func TestExecute_FailureIsStill200(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/execute", ExecuteRequest{TaskID: "CANCEL_CASE", StepNumber: 2, Service: "nope"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res executor.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `"nope"`)
	assert.Equal(t, 2, res.StepNumber)
}

func TestExecute_MissingTask(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/execute", ExecuteRequest{StepNumber: 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunbooks(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/runbooks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runbooks []RunbookSummary `json:"runbooks"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "CANCEL_CASE", list.Runbooks[0].ID)
	assert.Equal(t, 2, list.Runbooks[0].Steps)

	w = f.do(t, http.MethodGet, "/v1/runbooks/CANCEL_CASE", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/runbooks/NOPE", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/v1/runbooks/reload", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats registry.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Runbooks)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	w = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "opspilot_registry_runbooks")
}

func TestCallerFromRequest(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "bob@example.com",
		"roles": []string{"pathologist"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/execute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Lab-Id", "lab-9")

	c := callerFromRequest(req)
	assert.Equal(t, token, c.Token)
	assert.Equal(t, "bob@example.com", c.ActingUser)
	assert.Equal(t, "pathologist", c.Role)
	assert.Equal(t, "lab-9", c.LabID)
	assert.Empty(t, c.Headers.Get("Authorization"))

	req.Header.Set("X-Acting-User", "carol")
	assert.Equal(t, "carol", callerFromRequest(req).ActingUser)

	req.Header.Set("Authorization", "Bearer not-a-jwt")
	c = callerFromRequest(req)
	assert.Equal(t, "not-a-jwt", c.Token)
	assert.Empty(t, c.Role)
}
