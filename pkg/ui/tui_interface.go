package ui

import "time"

// Display receives run events from the orchestrator. ProgressDisplay and the
// bubbletea TUI both implement it.
type Display interface {
	Start(target, lastID int)
	BatchStarted(round, attempt, requested int)
	BatchAccepted(accepted, duplicates, lastID int)
	BatchFailed(round, attempt int, err error, delay time.Duration)
	RoundAbandoned(round int)
	RateLimited(wait time.Duration)
	Complete(accepted int, elapsed time.Duration)
	IsPaused() bool
}
