package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const logo = `
╔════════════════════════════════════════════╗
║   ⚔  F I G H T G E N  ⚔   arena edition    ║
║      batch animal fight generator          ║
╚════════════════════════════════════════════╝`

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	stats := m.statsLocked()
	half := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(stats, half),
		m.renderProgressPanel(stats, half),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHistoryPanel(half),
		m.renderLogsPanel(half),
	)

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// renderStatsPanel renders the run counters
func (m *Model) renderStatsPanel(s Stats, width int) string {
	title := titleStyle.Render(" ARENA STATS ")

	eta := "--:--"
	if s.ETA > 0 {
		eta = formatDuration(s.ETA)
	}

	lines := []string{
		stat("Session Time:", formatDuration(s.Elapsed)),
		stat("Fights:", fmt.Sprintf("%s / %s", humanize.Comma(int64(s.Accepted)), humanize.Comma(int64(s.Target)))),
		stat("Last Fight ID:", humanize.Comma(int64(s.LastID))),
		stat("Batches:", humanize.Comma(int64(s.Batches))),
		stat("Rate:", fmt.Sprintf("%.1f fights/min", s.Rate)),
		stat("ETA:", eta),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed Attempts:"),
			FailureStyle(s.Failed, s.Batches).Render(fmt.Sprintf("%d (%d rounds abandoned)", s.Failed, s.Abandoned))),
		stat("Repeated Facts:", humanize.Comma(int64(s.Duplicates))),
	}
	if m.isPaused {
		lines = append(lines, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// renderProgressPanel renders the progress bar and current phase
func (m *Model) renderProgressPanel(s Stats, width int) string {
	title := titleStyle.Render(" PROGRESS ")

	bar := m.bar
	bar.Width = max(width-8, 10)

	phase := PhaseStyle(s.Phase).Render(s.Phase.String())
	switch s.Phase {
	case PhaseRequesting:
		phase = fmt.Sprintf("%s %s %d fights (round %d, attempt %d)", m.spinner.View(), phase, m.requested, m.round, m.attempt)
	case PhaseBackoff, PhasePacing:
		wait := time.Until(m.waitUntil)
		if wait < 0 {
			wait = 0
		}
		phase = fmt.Sprintf("%s for %s", phase, formatDuration(wait))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		bar.ViewAs(s.Fraction()),
		fmt.Sprintf("%.1f%%", s.Fraction()*100),
		phase,
	)
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// renderHistoryPanel renders the most recent batch outcomes
func (m *Model) renderHistoryPanel(width int) string {
	title := titleStyle.Render(" RECENT BATCHES ")

	if len(m.history) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("No batches yet")),
		)
	}

	items := make([]string, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		e := m.history[i]
		ts := logTimestampStyle.Render(e.At.Format("15:04:05"))
		if e.Failed() {
			msg := e.Err
			if limit := width - 30; limit > 3 && len(msg) > limit {
				msg = msg[:limit-3] + "..."
			}
			items = append(items, fmt.Sprintf("%s %s round %d/%d %s", ts, errorStyle.Render("✗"), e.Round, e.Attempt, mutedStyle.Render(msg)))
			continue
		}
		line := fmt.Sprintf("%s %s +%d → #%s", ts, successStyle.Render("✓"), e.Accepted, humanize.Comma(int64(e.LastID)))
		if e.Duplicates > 0 {
			line += warningStyle.Render(fmt.Sprintf(" (%d repeated facts)", e.Duplicates))
		}
		items = append(items, line)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" ARENA LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		message := log.Message
		if maxLen := width - 25; maxLen > 3 && len(message) > maxLen {
			message = message[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(log.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level)),
			logMessageStyle.Render(message),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = mutedStyle.Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the run (progress is checkpointed)
    p/P      - Pause/Resume before the next request
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status:
    ` + successStyle.Render("Green") + `    - Requesting / accepted
    ` + warningStyle.Render("Orange") + `   - Pacing / repeated facts
    ` + errorStyle.Render("Red") + `      - Failed attempt / backing off
`
	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as hh:mm:ss or mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
