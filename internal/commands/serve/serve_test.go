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


package serve

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/api"
	"github.com/tombee/opspilot/internal/config"
	"github.com/tombee/opspilot/internal/log"
)

const runbook = `
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
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cancel.yaml"), []byte(runbook), 0o600))

	cfg := config.Default()
	cfg.Runbooks.Dir = dir
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestServe_HealthAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, cfg, log.New(&log.Config{Level: "error", Output: io.Discard}), ln)
	}()

	var health api.HealthResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&health) == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Runbooks.Runbooks)

	resp, err := http.Post(base+"/v1/interpret", "application/json",
		strings.NewReader(`{"query":"please cancel case 2025123P6732"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"taskId":"CANCEL_CASE"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = "256.0.0.1:bad"
	err := Run(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to listen")
}
