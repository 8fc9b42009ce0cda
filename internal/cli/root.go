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
	"github.com/spf13/cobra"

	"github.com/tombee/opspilot/internal/commands/execute"
	"github.com/tombee/opspilot/internal/commands/interpret"
	"github.com/tombee/opspilot/internal/commands/runbooks"
	"github.com/tombee/opspilot/internal/commands/serve"
	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/commands/version"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opspilot",
		Short: "opspilot - turn operator requests into runbook plans",
		Long: `opspilot turns a short operator request such as "cancel case 2025123P6732"
into a structured plan of prechecks, procedure, postchecks and rollback
steps drawn from declarative runbooks, and executes single steps against
the downstream API on request.

Run 'opspilot serve' to start the HTTP service.
Run 'opspilot interpret "<request>"' to preview a plan.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/opspilot/config.yaml)")

	cmd.AddCommand(
		serve.NewCommand(),
		interpret.NewCommand(),
		execute.NewCommand(),
		runbooks.NewCommand(),
		version.NewCommand(),
	)
	cmd.SetHelpCommand(NewHelpCommand(cmd))

	return cmd
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
