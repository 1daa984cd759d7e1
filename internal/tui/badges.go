// internal/tui/badges.go
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/metrics"
)

var stateColors = map[lifecycle.State]string{
	lifecycle.NotStarted: "245",
	lifecycle.Running:    "33",
	lifecycle.Completed:  "40",
	lifecycle.Failed:     "9",
	lifecycle.Stopped:    "214",
}

// renderStateBadge returns a badge for the run state.
func renderStateBadge(state lifecycle.State) string {
	color, ok := stateColors[state]
	if !ok {
		color = "245"
	}
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color(color)).Foreground(lipgloss.Color("0")).Bold(true).Padding(0, 1)
	return badgeStyle.Render(state.String())
}

// renderResultBadge returns a badge for the pass/fail verdict of a summary.
func renderResultBadge(summary *metrics.Summary) string {
	if summary == nil {
		return ""
	}
	color := "40"
	if summary.Status != metrics.StatusSuccess {
		color = "9"
	}
	label := fmt.Sprintf("%s %d/%d passed", summary.Status, summary.Passed, summary.TotalSamples)
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color(color)).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render(label)
}

// renderKey renders one help entry, dimmed when the action is disabled.
func renderKey(key, action string, disabled bool) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	if disabled {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	}
	return style.Render(key + " " + action)
}
