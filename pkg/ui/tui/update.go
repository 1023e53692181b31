package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// RunStartMsg is sent when the orchestrator loads its state
type RunStartMsg struct {
	Target int
	LastID int
}

// BatchStartMsg is sent before each generation request
type BatchStartMsg struct {
	Round     int
	Attempt   int
	Requested int
}

// BatchAcceptedMsg is sent after a batch is appended
type BatchAcceptedMsg struct {
	Accepted   int
	Duplicates int
	LastID     int
}

// BatchFailedMsg is sent when an attempt yields no usable batch
type BatchFailedMsg struct {
	Round   int
	Attempt int
	Err     error
	Delay   time.Duration
}

// RoundAbandonedMsg is sent when a round runs out of retries
type RoundAbandonedMsg struct {
	Round int
}

// PacingMsg is sent when the request limiter holds the next request
type PacingMsg struct {
	Wait time.Duration
}

// RunCompleteMsg is sent when the run ends
type RunCompleteMsg struct {
	Accepted int
	Elapsed  time.Duration
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tea.Batch(tickCmd(), m.spinner.Tick)

	case RunStartMsg:
		m.StartRun(msg.Target, msg.LastID)
		if msg.LastID > 0 {
			m.AddLogMessage("INFO", fmt.Sprintf("Resuming after fight #%d", msg.LastID))
		}
		m.AddLogMessage("INFO", fmt.Sprintf("Generating %d fights", msg.Target))
		return m, nil

	case BatchStartMsg:
		m.StartBatch(msg.Round, msg.Attempt, msg.Requested)
		return m, nil

	case BatchAcceptedMsg:
		m.AcceptBatch(msg.Accepted, msg.Duplicates, msg.LastID)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("Accepted %d fights, last #%d", msg.Accepted, msg.LastID))
		return m, nil

	case BatchFailedMsg:
		m.FailBatch(msg.Round, msg.Attempt, msg.Err, msg.Delay)
		m.AddLogMessage("WARN", fmt.Sprintf("Round %d attempt %d failed, retrying in %s", msg.Round, msg.Attempt, msg.Delay))
		return m, nil

	case RoundAbandonedMsg:
		m.AbandonRound()
		m.AddLogMessage("ERROR", fmt.Sprintf("Round %d abandoned", msg.Round))
		return m, nil

	case PacingMsg:
		m.Pace(msg.Wait)
		return m, nil

	case RunCompleteMsg:
		m.Finish(msg.Elapsed)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("Run finished: %d fights in %s", msg.Accepted, formatDuration(msg.Elapsed)))
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		paused := m.isPaused
		m.mu.Unlock()
		if paused {
			m.AddLogMessage("WARN", "Generation paused by user")
		} else {
			m.AddLogMessage("INFO", "Generation resumed by user")
		}
		return m, nil

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
