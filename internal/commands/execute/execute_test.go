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


package execute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/executor"
)

const cancelCase = `
id: CANCEL_CASE
name: Cancel case
classification:
  keywords: [cancel]
execution:
  steps:
    - stepNumber: 1
      name: Explain
      method: LOCAL_MESSAGE
      localMessage: Cancelling {case_id}
    - stepNumber: 2
      name: Cancel
      description: Cancel case {case_id}
      method: POST
      path: /cases/{case_id}/cancel
`

func setup(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	runbooks := filepath.Join(dir, "runbooks")
	require.NoError(t, os.MkdirAll(runbooks, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runbooks, "cancel.yaml"), []byte(cancelCase), 0o600))

	cfg := fmt.Sprintf("runbooks:\n  dir: runbooks\nservices:\n  cases:\n    base_url: %s\n", srv.URL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	shared.SetConfigPathForTest(path)
	t.Cleanup(shared.ResetFlagsForTest)
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExecute_HTTPStep(t *testing.T) {
	var gotPath, gotAuth string
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"CANCELLED"}`))
	})

	out, err := runCmd(t, "--task", "CANCEL_CASE", "--step", "2", "-e", "case_id=2025123P6732", "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/cases/2025123P6732/cancel", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Contains(t, out, "CANCEL_CASE step 2")
	assert.Contains(t, out, "CANCELLED")
}

func TestExecute_FailureExitCode(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"case not found"}`))
	})

	shared.SetJSONForTest(true)
	out, err := runCmd(t, "-t", "CANCEL_CASE", "-s", "2", "-e", "case_id=1")
	require.Error(t, err)
	assert.Equal(t, shared.ExitStepFailed, shared.ExitCode(err))

	var res executor.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestExecute_LocalStep(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("local step must not call the downstream service")
	})

	out, err := runCmd(t, "--task", "CANCEL_CASE", "--step", "1", "--entity", "case_id=42")
	require.NoError(t, err)
	assert.Contains(t, out, "CANCEL_CASE step 1")
}

func TestExecute_BadInput(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := runCmd(t, "--task", "CANCEL_CASE", "--step", "0")
	require.Error(t, err)
	assert.Equal(t, shared.ExitBadInput, shared.ExitCode(err))

	_, err = runCmd(t, "--task", "CANCEL_CASE", "--step", "1", "--entity", "novalue")
	assert.ErrorContains(t, err, "expected name=value")

	_, err = runCmd(t, "--step", "1")
	assert.ErrorContains(t, err, "required flag")
}

func TestEntityFlag(t *testing.T) {
	var e entityFlag
	require.NoError(t, e.Set("case_id=1,2"))
	require.NoError(t, e.Set("note=a=b"))
	assert.Equal(t, "case_id=1,2,note=a=b", e.String())
	assert.Equal(t, "name=value", e.Type())
}
