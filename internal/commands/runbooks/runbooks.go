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


// Package runbooks implements the runbooks command group.
package runbooks

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/opspilot/internal/api"
	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/registry"
	"github.com/tombee/opspilot/pkg/errors"
)

// NewCommand creates the runbooks command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runbooks",
		Short: "Inspect and validate runbook definitions",
	}
	cmd.AddCommand(newListCommand(), newShowCommand(), newValidateCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded runbooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := shared.Setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defs := app.Registry.List()
			summaries := make([]api.RunbookSummary, 0, len(defs))
			for _, def := range defs {
				summaries = append(summaries, api.Summarize(def))
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, summaries)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, shared.RenderWarn(out, "no runbooks loaded from "+app.Registry.Dir()))
				return nil
			}
			for _, s := range summaries {
				fmt.Fprintf(out, "%-28s %-40s %s\n", shared.Styled(out, shared.Bold, s.ID), s.Name,
					shared.Styled(out, shared.Muted, fmt.Sprintf("%d steps  %s", s.Steps, s.Category)))
			}
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one runbook definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := shared.Setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			def, err := app.Registry.Get(args[0])
			if err != nil {
				return shared.NewBadInputError("unknown runbook", err)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, def)
			}
			fmt.Fprintf(out, "%s %s\n", shared.Styled(out, shared.Header, def.ID), def.Name)
			if def.Description != "" {
				fmt.Fprintln(out, def.Description)
			}
			fmt.Fprintln(out, shared.Styled(out, shared.Muted, def.Source))
			fmt.Fprintln(out)
			for _, step := range def.Steps() {
				fmt.Fprintf(out, "  %2d. %s %-10s %s\n", step.StepNumber,
					shared.RenderMethod(out, step.Method), step.Stage(), step.Name)
			}
			return nil
		},
	}
}

// validationReport is the JSON form of runbooks validate.
type validationReport struct {
	shared.JSONResponse
	Valid   int                `json:"valid"`
	Invalid int                `json:"invalid"`
	Errors  []shared.JSONError `json:"errors,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate runbook files",
		Long: `Validate parses and checks every runbook under path, or the configured
runbook directory when path is omitted. Nothing is loaded into a running
service. Exit status is 2 when any definition is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := shared.LoadConfig()
				if err != nil {
					return err
				}
				path = cfg.Runbooks.Dir
				if pattern == "" {
					pattern = cfg.Runbooks.Pattern
				}
			}

			findings, err := registry.Check(path, pattern)
			if err != nil {
				return shared.NewBadInputError("cannot read runbooks", err)
			}
			return report(cmd.OutOrStdout(), findings)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob for runbook files under a directory")
	return cmd
}

func report(out io.Writer, findings []registry.Finding) error {
	rep := validationReport{JSONResponse: shared.JSONResponse{Version: "1.0", Command: "runbooks validate"}}
	for _, f := range findings {
		if f.OK() {
			rep.Valid++
			continue
		}
		rep.Invalid++
		jerr := shared.JSONError{Code: "INVALID_RUNBOOK", Message: f.Err.Error(), File: f.File}
		var verr *errors.ValidationError
		if errors.As(f.Err, &verr) {
			jerr.Suggestion = verr.Suggestion
		}
		if f.ID == "" {
			jerr.Code = "PARSE_ERROR"
		}
		rep.Errors = append(rep.Errors, jerr)
	}
	rep.Success = rep.Invalid == 0

	if shared.GetJSON() {
		if err := shared.EmitJSON(out, rep); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			name := f.File
			if f.ID != "" {
				name = f.ID + " " + shared.Styled(out, shared.Muted, "("+f.File+")")
			}
			if f.OK() {
				if !shared.GetQuiet() {
					fmt.Fprintln(out, shared.RenderOK(out, name))
				}
				continue
			}
			fmt.Fprintln(out, shared.RenderError(out, name))
			fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(f.Err.Error(), "\n", "\n    "))
		}
		if !shared.GetQuiet() {
			fmt.Fprintf(out, "\n%d valid, %d invalid\n", rep.Valid, rep.Invalid)
		}
	}

	if rep.Invalid > 0 {
		return shared.NewInvalidRunbookError("", nil)
	}
	return nil
}
