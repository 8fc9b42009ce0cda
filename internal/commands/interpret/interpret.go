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


// Package interpret implements the interpret command.
package interpret

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/orchestrator"
)

// NewCommand creates the interpret command.
func NewCommand() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "interpret [query]",
		Short: "Turn a request into an operational plan",
		Long: `Interpret classifies a free-text request against the loaded runbooks,
extracts its entities and prints the resolved plan. Nothing is executed.

Pass --task to skip classification and build the plan for a known task.`,
		Example: `  opspilot interpret "cancel case 2025123P6732"
  opspilot interpret --task UPDATE_CASE_STATUS "case 2025123P6732 to completed"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" && taskID == "" {
				return shared.NewBadInputError("a query or --task is required", nil)
			}

			app, err := shared.Setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			resp, err := app.Orchestrator.Interpret(cmd.Context(), orchestrator.Request{
				Query:  query,
				TaskID: taskID,
			})
			if err != nil {
				return shared.NewBadInputError("interpretation failed", err)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				if err := shared.EmitJSON(out, resp); err != nil {
					return fmt.Errorf("failed to write plan: %w", err)
				}
				return nil
			}
			shared.RenderResponse(out, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskID, "task", "t", "", "Task id to plan instead of classifying the query")
	return cmd
}
