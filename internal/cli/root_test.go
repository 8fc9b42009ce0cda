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


package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opspilot/internal/commands/shared"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "opspilot", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{"verbose", "quiet", "json", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}

	cmd.InitDefaultHelpCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "interpret", "execute", "runbooks", "version", "help"})
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-05")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2026-01-05", b)
}

func TestHelpJSON(t *testing.T) {
	defer shared.ResetFlagsForTest()

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"help", "execute", "--json"})
	require.NoError(t, cmd.Execute())

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Command)
	assert.Equal(t, "execute", resp.Command.Name)

	required := map[string]bool{}
	for _, f := range resp.Command.Flags {
		required[f.Name] = f.Required
	}
	assert.True(t, required["task"])
	assert.True(t, required["step"])
	assert.False(t, required["service"])
	assert.NotEmpty(t, resp.GlobalFlags)
}

func TestHelpUnknownCommand(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"help", "nope"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, shared.ExitBadInput, shared.ExitCode(err))
}
