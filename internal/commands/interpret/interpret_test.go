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


package interpret

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/commands/shared"
)

const cancelCase = `
id: CANCEL_CASE
name: Cancel case
classification:
  keywords: [cancel]
extraction:
  case_id:
    patterns: ['case\s+(\w+)']
    required: true
execution:
  steps:
    - stepNumber: 1
      name: Check
      description: Check {case_id} exists
      stepType: prechecks
      method: GET
      path: /cases/{case_id}
    - stepNumber: 2
      name: Cancel
      description: Cancel case {case_id}
      method: POST
      path: /cases/{case_id}/cancel
`

func setup(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cancel.yaml"), []byte(cancelCase), 0o600))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runbooks:\n  dir: .\n"), 0o600))
	shared.SetConfigPathForTest(path)
	t.Cleanup(shared.ResetFlagsForTest)
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInterpret_Text(t *testing.T) {
	setup(t)

	out, err := runCmd(t, "please", "cancel", "case", "2025123P6732")
	require.NoError(t, err)
	assert.Contains(t, out, "Task: CANCEL_CASE")
	assert.Contains(t, out, "case_id: 2025123P6732")
	assert.Contains(t, out, "Prechecks")
	assert.Contains(t, out, "Cancel case 2025123P6732")
}

func TestInterpret_JSON(t *testing.T) {
	setup(t)
	shared.SetJSONForTest(true)

	out, err := runCmd(t, "cancel case 2025123P6732")
	require.NoError(t, err)

	var resp struct {
		TaskID     string            `json:"taskId"`
		Classifier string            `json:"classifier"`
		Entities   map[string]string `json:"entities"`
		Procedure  []struct {
			StepNumber int    `json:"stepNumber"`
			Path       string `json:"path"`
		} `json:"procedure"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "CANCEL_CASE", resp.TaskID)
	assert.Equal(t, "declarative", resp.Classifier)
	assert.Equal(t, "2025123P6732", resp.Entities["case_id"])
	require.Len(t, resp.Procedure, 1)
	assert.Equal(t, "/cases/2025123P6732/cancel", resp.Procedure[0].Path)
}

func TestInterpret_Unknown(t *testing.T) {
	setup(t)

	out, err := runCmd(t, "what is the weather")
	require.NoError(t, err)
	assert.Contains(t, out, "Task: UNKNOWN")
}

func TestInterpret_RequiresInput(t *testing.T) {
	setup(t)

	_, err := runCmd(t)
	require.Error(t, err)
	assert.Equal(t, shared.ExitBadInput, shared.ExitCode(err))
}
