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


// Package execute implements the execute command.
package execute

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/executor"
)

// entityFlag collects repeated --entity name=value pairs. Values may
// contain commas and further '=' signs.
type entityFlag map[string]string

var _ pflag.Value = (*entityFlag)(nil)

func (e *entityFlag) String() string {
	if e == nil || len(*e) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*e))
	for k, v := range *e {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (e *entityFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	if *e == nil {
		*e = make(map[string]string)
	}
	(*e)[name] = value
	return nil
}

func (e *entityFlag) Type() string { return "name=value" }

type options struct {
	taskID     string
	step       int
	service    string
	entities   entityFlag
	token      string
	actingUser string
	role       string
	labID      string
	discipline string
	timezone   string
}

// NewCommand creates the execute command.
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute one step of a runbook",
		Long: `Execute runs a single step of a loaded runbook with the given entities.
HTTP steps are sent to the configured downstream service with the caller's
token and identity headers. Exit status is non-zero when the step fails.`,
		Example: `  opspilot execute --task CANCEL_CASE --step 3 --entity case_id=2025123P6732
  OPSPILOT_TOKEN=... opspilot execute -t CANCEL_CASE -s 3 -e case_id=2025123P6732 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.taskID, "task", "t", "", "Task id (required)")
	f.IntVarP(&opts.step, "step", "s", 0, "Step number (required)")
	f.VarP(&opts.entities, "entity", "e", "Entity value, repeatable")
	f.StringVar(&opts.service, "service", "", "Downstream service override")
	f.StringVar(&opts.token, "token", "", "Bearer token to forward (default $OPSPILOT_TOKEN)")
	f.StringVar(&opts.actingUser, "acting-user", "", "Acting user header value")
	f.StringVar(&opts.role, "role", "", "Role header value")
	f.StringVar(&opts.labID, "lab-id", "", "Lab id header value")
	f.StringVar(&opts.discipline, "discipline", "", "Discipline header value")
	f.StringVar(&opts.timezone, "timezone", "", "Timezone header value")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("step")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.step < 1 {
		return shared.NewBadInputError("--step must be 1 or greater", nil)
	}

	app, err := shared.Setup(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	token := opts.token
	if token == "" {
		token = os.Getenv("OPSPILOT_TOKEN")
	}

	res := app.Executor.Execute(cmd.Context(), executor.Request{
		TaskID:     opts.taskID,
		StepNumber: opts.step,
		Entities:   opts.entities,
		Service:    opts.service,
		Caller: executor.Caller{
			Token:      token,
			ActingUser: opts.actingUser,
			Role:       opts.role,
			LabID:      opts.labID,
			Discipline: opts.discipline,
			Timezone:   opts.timezone,
		},
	})

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		if err := shared.EmitJSON(out, res); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	} else if !shared.GetQuiet() || !res.Success {
		shared.RenderResult(out, res)
	}

	if !res.Success {
		return shared.NewStepFailedError("", nil)
	}
	return nil
}
