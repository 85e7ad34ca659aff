package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"shortscraper/pkg/worker"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

type workerLine struct {
	collected int
	quota     int
	errors    int
	state     string
	done      bool
}

// ProgressDisplay renders worker events as a single refreshing status line.
// In debug mode every event gets its own line instead.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	workers   map[string]*workerLine
	startTime time.Time
	isDebug   bool
}

// NewProgressDisplay creates a new progress display
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		workers:   make(map[string]*workerLine),
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// Handle consumes one worker event. It is safe to call from any worker goroutine.
func (p *ProgressDisplay) Handle(ev worker.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line, ok := p.workers[ev.WorkerID]
	if !ok {
		line = &workerLine{}
		p.workers[ev.WorkerID] = line
	}
	line.collected = ev.Collected
	line.quota = ev.Quota
	line.errors = ev.Errors
	line.state = ev.State.String()
	if ev.Kind == worker.EventDone {
		line.done = true
	}

	if p.isDebug {
		p.printEvent(ev)
		return
	}
	p.printProgress()
}

// Totals returns the collected and quota sums over every worker seen so far
func (p *ProgressDisplay) Totals() (collected, quota, errors int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.workers {
		collected += l.collected
		quota += l.quota
		errors += l.errors
	}
	return collected, quota, errors
}

func (p *ProgressDisplay) printEvent(ev worker.Event) {
	switch ev.Kind {
	case worker.EventItem:
		fmt.Fprintf(p.out, "%s %s %s %d/%d\n", Green("✓"), Cyan(ev.WorkerID), ev.ItemID, ev.Collected, ev.Quota)
	case worker.EventError:
		fmt.Fprintf(p.out, "%s %s %s\n", Red("✗"), Cyan(ev.WorkerID), ev.Message)
	case worker.EventState:
		fmt.Fprintf(p.out, "%s %s %s\n", Magenta("→"), Cyan(ev.WorkerID), ev.State)
	case worker.EventDone:
		fmt.Fprintf(p.out, "%s %s finished: %s\n", Dim("•"), Cyan(ev.WorkerID), ev.Reason)
	}
}

func (p *ProgressDisplay) printProgress() {
	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	collected, quota, errors := 0, 0, 0
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		l := p.workers[id]
		collected += l.collected
		quota += l.quota
		errors += l.errors
		part := fmt.Sprintf("%s %d/%d", id, l.collected, l.quota)
		if l.done {
			part = Dim(part)
		}
		parts = append(parts, part)
	}

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed.Minutes() > 0 {
		rate = float64(collected) / elapsed.Minutes()
	}

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan("scraping"),
		Bar(collected, quota, barWidth),
		collected,
		quota,
		rate,
		strings.Join(parts, " "),
	)
	if errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", errors)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete ends the status line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isDebug {
		fmt.Fprintln(p.out)
	}
}

// Bar draws a fixed-width progress bar for done out of total
func Bar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
