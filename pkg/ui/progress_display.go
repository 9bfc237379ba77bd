package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// BatchDisplay summarises a run over several cached items.
type BatchDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	done      int
	failed    int
	current   string
	startTime time.Time
}

// NewBatchDisplay creates a display for total items.
func NewBatchDisplay(out io.Writer, total int) *BatchDisplay {
	return &BatchDisplay{out: out, total: total, startTime: time.Now()}
}

// Start announces the next item.
func (b *BatchDisplay) Start(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = label
	fmt.Fprintf(b.out, "%s [%d/%d] %s • eta %s\n",
		Magenta("→"), b.done+b.failed+1, b.total, label, b.eta())
}

// Done marks the current item as published.
func (b *BatchDisplay) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	fmt.Fprintf(b.out, "%s %s\n", Green("✓"), b.current)
}

// Fail marks the current item as failed.
func (b *BatchDisplay) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failed++
	fmt.Fprintf(b.out, "%s %s: %v\n", Red("✗"), b.current, err)
}

// Complete prints the summary line.
func (b *BatchDisplay) Complete() {
	b.mu.Lock()
	defer b.mu.Unlock()

	fmt.Fprintf(b.out, "\n%s Published %d of %d items in %s\n",
		Green("✓"), b.done, b.total, formatDuration(time.Since(b.startTime)))
	if b.failed > 0 {
		fmt.Fprintf(b.out, "  %s %d items failed and stay cached\n", Dim("•"), b.failed)
	}
}

// eta estimates the remaining time from the average so far.
func (b *BatchDisplay) eta() string {
	finished := b.done + b.failed
	if finished == 0 {
		return "calculating..."
	}
	per := time.Since(b.startTime) / time.Duration(finished)
	return formatDuration(per * time.Duration(b.total-finished))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
