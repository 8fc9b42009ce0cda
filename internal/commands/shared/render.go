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


package shared

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tombee/opspilot/internal/executor"
	"github.com/tombee/opspilot/internal/orchestrator"
	"github.com/tombee/opspilot/pkg/plan"
	"github.com/tombee/opspilot/pkg/runbook"
)

// RenderResponse prints an interpretation for a terminal reader.
func RenderResponse(w io.Writer, resp *orchestrator.Response) {
	title := resp.TaskID
	if resp.Name != "" {
		title += " " + Styled(w, Muted, "("+resp.Name+")")
	}
	fmt.Fprintf(w, "%s %s\n", Styled(w, Header, "Task:"), title)

	detail := "classifier " + resp.Classifier
	if resp.Score > 0 {
		detail += fmt.Sprintf(", score %.1f", resp.Score)
	}
	if resp.Service != "" {
		detail += ", service " + resp.Service
	}
	fmt.Fprintln(w, Styled(w, Muted, detail))

	if len(resp.Entities) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, Styled(w, Header, "Entities"))
		keys := make([]string, 0, len(resp.Entities))
		for k := range resp.Entities {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %s\n", Styled(w, Muted, k+":"), resp.Entities[k])
		}
	}

	renderStage(w, runbook.StagePrechecks, resp.Prechecks)
	renderStage(w, runbook.StageProcedure, resp.Procedure)
	renderStage(w, runbook.StagePostchecks, resp.Postchecks)
	renderStage(w, runbook.StageRollback, resp.Rollback)

	if len(resp.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range resp.Warnings {
			fmt.Fprintln(w, RenderWarn(w, warning))
		}
	}
}

func renderStage(w io.Writer, stage runbook.Stage, steps []plan.Step) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, Styled(w, Header, strings.ToUpper(string(stage[:1]))+string(stage[1:])))
	for _, s := range steps {
		line := fmt.Sprintf("  %2d. %s %s", s.StepNumber, RenderMethod(w, s.Method), s.Description)
		if s.Path != "" && !s.Method.IsLocal() {
			line += " " + Styled(w, Muted, s.Path)
		}
		if s.AutoExecutable {
			line += " " + Styled(w, StatusInfo, "[auto]")
		}
		if s.Optional {
			line += " " + Styled(w, Muted, "[optional]")
		}
		fmt.Fprintln(w, line)
	}
}

// RenderResult prints an execution result for a terminal reader.
func RenderResult(w io.Writer, res *executor.Result) {
	label := fmt.Sprintf("%s step %d", res.TaskID, res.StepNumber)
	if res.StepDescription != "" {
		label += ": " + res.StepDescription
	}

	if res.Success {
		fmt.Fprintln(w, RenderOK(w, label))
	} else {
		fmt.Fprintln(w, RenderError(w, label))
	}

	meta := []string{res.Method}
	if res.Service != "" {
		meta = append(meta, "service "+res.Service)
	}
	if res.StatusCode != 0 {
		meta = append(meta, fmt.Sprintf("status %d", res.StatusCode))
	}
	meta = append(meta, fmt.Sprintf("%dms", res.ElapsedMs))
	fmt.Fprintln(w, Styled(w, Muted, "  "+strings.Join(meta, ", ")))

	if !res.Success {
		if res.UserMessage != "" {
			fmt.Fprintf(w, "  %s\n", res.UserMessage)
		}
		category := res.ErrorCategory
		if category == "" {
			category = "error"
		}
		fmt.Fprintf(w, "  %s %s\n", Styled(w, Muted, category+":"), res.Error)
	}
	if res.ResponseBody != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, res.ResponseBody)
	}
}
