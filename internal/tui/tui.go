// internal/tui/tui.go
// Package tui renders a live view of a load test session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/mailbox"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/runner"
	"github.com/mwiater/loadpilot/internal/session"
	"github.com/mwiater/loadpilot/internal/util"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 2 * time.Second

// pollMsg asks the model to drain the session mailbox.
type pollMsg time.Time

// model is the Bubble Tea model of one session.
type model struct {
	ctx           context.Context
	session       *session.Session
	runConfig     results.RunConfig
	interval      time.Duration
	snapshot      session.Snapshot
	logLines      []string
	spinner       spinner.Model
	viewport      viewport.Model
	width, height int
	quitting      bool
	startErr      error
}

func newModel(ctx context.Context, sess *session.Session, cfg results.RunConfig, interval time.Duration) *model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &model{
		ctx:       ctx,
		session:   sess,
		runConfig: cfg,
		interval:  interval,
		spinner:   s,
		viewport:  viewport.New(100, 10),
	}
	m.applySnapshot(sess.Poll())
	return m
}

func (m *model) pollCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func pollNow() tea.Msg {
	return pollMsg(time.Now())
}

// Init starts the spinner and the poll loop.
func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.pollCmd())
}

// Update handles key presses, window sizing and poll ticks.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.snapshot.Lifecycle.State == lifecycle.Running {
				m.session.Stop()
			}
			m.quitting = true
			return m, tea.Quit
		case "s":
			m.session.Stop()
			return m, pollNow
		case "r":
			_, err := m.session.Start(m.ctx, m.runConfig)
			m.startErr = nil
			if err != nil && !errors.Is(err, runner.ErrPrecondition) {
				m.startErr = err
			}
			return m, pollNow
		case "c":
			if m.session.ClearLogs() {
				m.logLines = nil
				m.viewport.SetContent("")
			}
			return m, pollNow
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.refreshLog()
		headerHeight := 4
		summaryHeight := lipgloss.Height(m.summaryView())
		footerHeight := 2
		if h := msg.Height - headerHeight - summaryHeight - footerHeight; h > 3 {
			m.viewport.Height = h
		} else {
			m.viewport.Height = 3
		}
		return m, nil

	case pollMsg:
		m.applySnapshot(m.session.Poll())
		return m, m.pollCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) applySnapshot(snap session.Snapshot) {
	m.snapshot = snap
	if len(snap.NewLogs) == 0 {
		return
	}
	for _, e := range snap.NewLogs {
		m.logLines = append(m.logLines, e.String())
	}
	if over := len(m.logLines) - mailbox.MaxLogEntries; over > 0 {
		m.logLines = append(m.logLines[:0:0], m.logLines[over:]...)
	}
	m.refreshLog()
	m.viewport.GotoBottom()
}

// refreshLog clips the log lines to the viewport width.
func (m *model) refreshLog() {
	m.viewport.SetContent(util.ClipLines(m.logLines, m.viewport.Width))
}

// View renders the header, summary, log and help line.
func (m *model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	header := headerStyle.Render("loadpilot") + " " + renderStateBadge(m.snapshot.Lifecycle.State)
	if m.snapshot.Lifecycle.State == lifecycle.Running {
		header += " " + m.spinner.View()
	}
	header += renderResultBadge(m.snapshot.Summary)
	b.WriteString(header + "\n")

	cfgStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	b.WriteString(cfgStyle.Render(fmt.Sprintf("%d users, ramp-up %ds, duration %ds, %d loop(s), RAG %t, %d prompt(s) | %s",
		m.runConfig.VirtualUsers, m.runConfig.RampUpSeconds, m.runConfig.DurationSeconds,
		m.runConfig.Iterations, m.runConfig.UseRAG, m.runConfig.PromptCount, m.runConfig.DefinitionPath)) + "\n")
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	if err := m.snapshot.Lifecycle.Err; err != nil {
		b.WriteString(errorStyle.Render(util.Wrap("Error: "+err.Error(), m.width)) + "\n")
	}
	if m.startErr != nil {
		b.WriteString(errorStyle.Render(util.Wrap("Cannot start: "+m.startErr.Error(), m.width)) + "\n")
	}
	b.WriteString("\n")

	if summary := m.summaryView(); summary != "" {
		b.WriteString(summary + "\n")
	}

	b.WriteString(m.viewport.View() + "\n")

	controls := m.snapshot.Controls
	help := strings.Join([]string{
		renderKey("r", "run", controls.StartDisabled),
		renderKey("s", "stop", controls.StopDisabled),
		renderKey("c", "clear logs", controls.ClearLogsDisabled),
		renderKey("q", "quit", false),
	}, "  ")
	b.WriteString(help)
	return b.String()
}

func (m *model) summaryView() string {
	s := m.snapshot.Summary
	if s == nil {
		return ""
	}
	labelStyle := lipgloss.NewStyle().Bold(true)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d samples, %d passed, %d failed (%.2f%% errors) over %s\n",
		labelStyle.Render("Samples:"), s.TotalSamples, s.Passed, s.Failed, s.ErrorRate, metrics.FormatDuration(s.Duration))
	fmt.Fprintf(&b, "%s avg %.2f ms, p90 %.2f ms, min %.0f ms, max %.0f ms\n",
		labelStyle.Render("Response:"), s.AvgResponseMs, s.P90ResponseMs, s.MinResponseMs, s.MaxResponseMs)
	if t := s.Tokens; t != nil {
		fmt.Fprintf(&b, "%s TTFT avg %.2f ms, TPOT avg %.2f ms, TPS avg %.2f (%d requests)\n",
			labelStyle.Render("Tokens:"), t.TTFT.Avg, t.TPOT.Avg, t.TPS.Avg, t.Count)
	}
	if len(s.Labels) > 0 {
		b.WriteString(labelTable(s.Labels))
	}
	return strings.TrimRight(b.String(), "\n")
}

func labelTable(labels []metrics.LabelAggregate) string {
	width := len("Label")
	for _, l := range labels {
		if len(l.Label) > width {
			width = len(l.Label)
		}
	}
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-*s %8s %7s %8s %10s %10s", width, "Label", "Samples", "Errors", "Error %", "Avg ms", "P90 ms")) + "\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "%-*s %8d %7d %8.2f %10.2f %10.2f\n", width, l.Label, l.Samples, l.Errors, l.ErrorRatePct, l.AvgMs, l.P90Ms)
	}
	return b.String()
}

// Run starts a run on sess and shows it until the operator quits. A run
// rejected at launch is still shown so its error is visible.
func Run(ctx context.Context, sess *session.Session, cfg results.RunConfig, interval time.Duration) error {
	_, _ = sess.Start(ctx, cfg)
	m := newModel(ctx, sess, cfg, interval)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
