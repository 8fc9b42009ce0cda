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
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tombee/opspilot/pkg/runbook"
)

var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	StatusInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	Muted       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	// Method badges
	localMethod = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	readMethod  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	writeMethod = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
	SymbolInfo  = "•"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Styled renders s with style only when w is a terminal.
func Styled(w io.Writer, style lipgloss.Style, s string) string {
	if !IsTerminal(w) {
		return s
	}
	return style.Render(s)
}

func RenderOK(w io.Writer, msg string) string {
	return Styled(w, StatusOK, SymbolOK) + " " + msg
}

func RenderWarn(w io.Writer, msg string) string {
	return Styled(w, StatusWarn, SymbolWarn) + " " + msg
}

func RenderError(w io.Writer, msg string) string {
	return Styled(w, StatusError, SymbolError) + " " + msg
}

// RenderMethod renders a step method badge padded to a fixed width.
func RenderMethod(w io.Writer, m runbook.Method) string {
	label := string(m)
	if len(label) < 17 {
		label += strings.Repeat(" ", 17-len(label))
	}
	switch {
	case m.IsLocal():
		return Styled(w, localMethod, label)
	case m == runbook.MethodGet:
		return Styled(w, readMethod, label)
	default:
		return Styled(w, writeMethod, label)
	}
}

