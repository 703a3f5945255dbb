// SPDX-License-Identifier: MPL-2.0

package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/azbin/azbin/internal/issue"
)

var (
	prefixStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// renderDiagnostic formats ae for stderr. Styling is applied only when
// stderr is a terminal so redirected output stays plain; verbose adds the
// cause chain.
func renderDiagnostic(ae *issue.ActionableError, styled, verbose bool) string {
	if ae == nil {
		return ""
	}
	text := ae.Format(verbose)
	if !styled {
		return "az: " + text
	}

	head, rest, _ := strings.Cut(text, "\n")
	var b strings.Builder
	b.WriteString(prefixStyle.Render("az:"))
	b.WriteString(" ")
	b.WriteString(head)
	if rest != "" {
		b.WriteString("\n")
		b.WriteString(suggestionStyle.Render(rest))
	}
	return b.String()
}
