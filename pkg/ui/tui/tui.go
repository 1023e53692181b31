package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI drives a bubbletea program from orchestrator events. It satisfies
// ui.Display.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance. Without options it takes the alt screen.
func NewTUI(opts ...tea.ProgramOption) *TUI {
	model := NewModel()
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run runs the program and blocks until it exits
func (t *TUI) Run() error {
	go func() {
		// kick off the refresh loop once the program is up
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Model exposes the underlying model
func (t *TUI) Model() *Model {
	return t.model
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) Start(target, lastID int) {
	t.Send(RunStartMsg{Target: target, LastID: lastID})
}

func (t *TUI) BatchStarted(round, attempt, requested int) {
	t.Send(BatchStartMsg{Round: round, Attempt: attempt, Requested: requested})
}

func (t *TUI) BatchAccepted(accepted, duplicates, lastID int) {
	t.Send(BatchAcceptedMsg{Accepted: accepted, Duplicates: duplicates, LastID: lastID})
}

func (t *TUI) BatchFailed(round, attempt int, err error, delay time.Duration) {
	t.Send(BatchFailedMsg{Round: round, Attempt: attempt, Err: err, Delay: delay})
}

func (t *TUI) RoundAbandoned(round int) {
	t.Send(RoundAbandonedMsg{Round: round})
}

func (t *TUI) RateLimited(wait time.Duration) {
	t.Send(PacingMsg{Wait: wait})
}

func (t *TUI) Complete(accepted int, elapsed time.Duration) {
	t.Send(RunCompleteMsg{Accepted: accepted, Elapsed: elapsed})
}

// IsPaused returns whether the user paused generation
func (t *TUI) IsPaused() bool {
	return t.model.Paused()
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
