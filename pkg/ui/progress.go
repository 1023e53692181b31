package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

// StatusTracker keeps the run's counters and derives rate and ETA from them
type StatusTracker struct {
	Accepted  int
	Target    int
	LastID    int
	Failed    int
	Abandoned int
	StartTime time.Time

	now func() time.Time
}

// NewStatusTracker creates a tracker for target records
func NewStatusTracker(target int) *StatusTracker {
	return &StatusTracker{
		Target:    target,
		StartTime: time.Now(),
		now:       time.Now,
	}
}

// Elapsed returns the time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return st.now().Sub(st.StartTime)
}

// Rate returns accepted records per minute
func (st *StatusTracker) Rate() float64 {
	elapsed := st.Elapsed().Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(st.Accepted) / elapsed
}

// ETA estimates the time left, or 0 when there is nothing to go on
func (st *StatusTracker) ETA() time.Duration {
	if st.Accepted == 0 || st.Accepted >= st.Target {
		return 0
	}
	perRecord := st.Elapsed() / time.Duration(st.Accepted)
	return perRecord * time.Duration(st.Target-st.Accepted)
}

// Fraction returns progress in [0, 1]
func (st *StatusTracker) Fraction() float64 {
	if st.Target <= 0 {
		return 1
	}
	f := float64(st.Accepted) / float64(st.Target)
	if f > 1 {
		f = 1
	}
	return f
}

// Bar renders a fixed-width progress bar
func (st *StatusTracker) Bar() string {
	filled := int(st.Fraction() * barWidth)
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
}

// Percent formats progress as a percentage
func (st *StatusTracker) Percent() string {
	return fmt.Sprintf("%.1f%%", st.Fraction()*100)
}
