package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressDisplay renders a single, continuously rewritten progress line.
// In debug mode it prints one line per event instead.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	tracker *StatusTracker
	status  string
	isDebug bool
}

// NewProgressDisplay creates a progress display writing to Output
func NewProgressDisplay(target int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     Output,
		tracker: NewStatusTracker(target),
		isDebug: debug,
	}
}

// Tracker returns the underlying counters
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

func (p *ProgressDisplay) Start(target, lastID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Target = target
	p.tracker.LastID = lastID
	p.tracker.StartTime = p.tracker.now()

	if lastID > 0 {
		p.println(fmt.Sprintf("%s Resuming after fight #%s", Cyan("►"), humanize.Comma(int64(lastID))))
	}
	p.println(fmt.Sprintf("%s Generating %s fights", Cyan("►"), humanize.Comma(int64(target))))
}

func (p *ProgressDisplay) BatchStarted(round, attempt, requested int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = fmt.Sprintf("round %d", round)
	if attempt > 1 {
		p.status += fmt.Sprintf(" retry %d", attempt-1)
	}
	if p.isDebug {
		p.println(fmt.Sprintf("%s Requesting %d fights (%s)", Magenta("→"), requested, p.status))
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) BatchAccepted(accepted, duplicates, lastID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Accepted += accepted
	p.tracker.LastID = lastID
	p.status = ""
	if p.isDebug {
		line := fmt.Sprintf("%s +%d fights, last #%d", Green("✓"), accepted, lastID)
		if duplicates > 0 {
			line += Dim(fmt.Sprintf(" • %d repeated facts", duplicates))
		}
		p.println(line)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) BatchFailed(round, attempt int, err error, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Failed++
	if p.isDebug {
		p.println(fmt.Sprintf("%s Round %d attempt %d failed: %v (retry in %s)", Red("✗"), round, attempt, err, delay))
		return
	}
	p.status = fmt.Sprintf("retrying in %s", delay)
	p.printProgress()
}

func (p *ProgressDisplay) RoundAbandoned(round int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Abandoned++
	p.println(fmt.Sprintf("%s Round %d abandoned after repeated failures", Yellow("⚠"), round))
}

func (p *ProgressDisplay) RateLimited(wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDebug {
		p.println(fmt.Sprintf("%s Pacing: waiting %s", Yellow("⚠"), wait.Round(time.Millisecond)))
		return
	}
	p.status = "pacing"
	p.printProgress()
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(accepted int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if IsQuietMode() {
		return
	}
	fmt.Fprintf(p.out, "\n\n%s Generated %s fights (last #%s)\n",
		Green("✓"),
		humanize.Comma(int64(accepted)),
		humanize.Comma(int64(p.tracker.LastID)),
	)
	fmt.Fprintf(p.out, "  %s took %s\n", Dim("•"), formatElapsed(elapsed))
	if p.tracker.Failed > 0 || p.tracker.Abandoned > 0 {
		fmt.Fprintf(p.out, "  %s %d failed attempts, %d abandoned rounds\n", Dim("•"), p.tracker.Failed, p.tracker.Abandoned)
	}
}

// IsPaused is always false; the line display has no pause control
func (p *ProgressDisplay) IsPaused() bool {
	return false
}

func (p *ProgressDisplay) println(line string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", line)
}

// printProgress rewrites the progress line in place
func (p *ProgressDisplay) printProgress() {
	if IsQuietMode() {
		return
	}
	st := p.tracker

	eta := "calculating..."
	if d := st.ETA(); d > 0 {
		eta = "eta " + formatElapsed(d)
	}

	line := fmt.Sprintf("%s [%s] %s/%s • %.1f/min • %s",
		Cyan("fights"),
		st.Bar(),
		humanize.Comma(int64(st.Accepted)),
		humanize.Comma(int64(st.Target)),
		st.Rate(),
		eta,
	)
	if p.status != "" {
		line += " • " + p.status
	}
	if st.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", st.Failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// formatElapsed renders d as "3 minutes" style text
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(d), "", ""))
}
