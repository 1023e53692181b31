package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase is what the run is doing right now
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
	PhaseBackoff
	PhasePacing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRequesting:
		return "requesting"
	case PhaseBackoff:
		return "backing off"
	case PhasePacing:
		return "pacing"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// BatchEntry is one line of the recent batches panel
type BatchEntry struct {
	Round      int
	Attempt    int
	Accepted   int
	Duplicates int
	LastID     int
	Err        string
	At         time.Time
}

// Failed reports whether the entry records a failed attempt
func (b BatchEntry) Failed() bool {
	return b.Err != ""
}

// Model represents the TUI model
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	// Run counters
	target     int
	accepted   int
	startID    int
	lastID     int
	batches    int
	failed     int
	abandoned  int
	duplicates int

	// Current round
	phase     Phase
	round     int
	attempt   int
	requested int
	waitUntil time.Time

	history    []BatchEntry
	maxHistory int

	sessionStartTime time.Time
	finishedAfter    time.Duration

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel() *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		spinner:          s,
		bar:              bar,
		sessionStartTime: time.Now(),
		maxHistory:       8,
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartRun resets the counters for a run toward target
func (m *Model) StartRun(target, lastID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target = target
	m.startID = lastID
	m.lastID = lastID
	m.sessionStartTime = time.Now()
}

// StartBatch marks a request as in flight
func (m *Model) StartBatch(round, attempt, requested int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseRequesting
	m.round = round
	m.attempt = attempt
	m.requested = requested
}

// AcceptBatch records an appended batch
func (m *Model) AcceptBatch(accepted, duplicates, lastID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseIdle
	m.accepted += accepted
	m.duplicates += duplicates
	m.lastID = lastID
	m.batches++
	m.pushHistory(BatchEntry{
		Round:      m.round,
		Attempt:    m.attempt,
		Accepted:   accepted,
		Duplicates: duplicates,
		LastID:     lastID,
		At:         time.Now(),
	})
}

// FailBatch records a failed attempt and the backoff that follows it
func (m *Model) FailBatch(round, attempt int, err error, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed++
	m.phase = PhaseBackoff
	m.waitUntil = time.Now().Add(delay)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	m.pushHistory(BatchEntry{Round: round, Attempt: attempt, Err: msg, At: time.Now()})
}

// AbandonRound counts a round given up after its retries
func (m *Model) AbandonRound() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.abandoned++
	m.phase = PhaseIdle
}

// Pace records a wait imposed by the request limiter
func (m *Model) Pace(wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhasePacing
	m.waitUntil = time.Now().Add(wait)
}

// Finish marks the run as complete
func (m *Model) Finish(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseDone
	m.finishedAfter = elapsed
}

func (m *Model) pushHistory(e BatchEntry) {
	m.history = append(m.history, e)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = alertRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Paused reports whether the user paused generation
func (m *Model) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Stats is a snapshot of the run counters
type Stats struct {
	Target     int
	Accepted   int
	LastID     int
	Batches    int
	Failed     int
	Abandoned  int
	Duplicates int
	Phase      Phase
	Elapsed    time.Duration
	Rate       float64
	ETA        time.Duration
}

// Fraction returns progress toward the target in [0, 1]
func (s Stats) Fraction() float64 {
	if s.Target <= 0 {
		return 1
	}
	f := float64(s.Accepted) / float64(s.Target)
	if f > 1 {
		f = 1
	}
	return f
}

// GetStats returns a consistent snapshot of the counters
func (m *Model) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

func (m *Model) statsLocked() Stats {
	elapsed := time.Since(m.sessionStartTime)
	if m.phase == PhaseDone {
		elapsed = m.finishedAfter
	}

	s := Stats{
		Target:     m.target,
		Accepted:   m.accepted,
		LastID:     m.lastID,
		Batches:    m.batches,
		Failed:     m.failed,
		Abandoned:  m.abandoned,
		Duplicates: m.duplicates,
		Phase:      m.phase,
		Elapsed:    elapsed,
	}
	if elapsed > 0 {
		s.Rate = float64(m.accepted) / elapsed.Minutes()
	}
	if m.accepted > 0 && m.accepted < m.target {
		s.ETA = elapsed / time.Duration(m.accepted) * time.Duration(m.target-m.accepted)
	}
	return s
}

// RecentBatches returns the recent batch history, newest last
func (m *Model) RecentBatches() []BatchEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BatchEntry, len(m.history))
	copy(out, m.history)
	return out
}
