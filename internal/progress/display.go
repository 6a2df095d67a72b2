package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Display periodically renders tracker state to the terminal.
type Display struct {
	tracker  *Tracker
	interval time.Duration
	stopCh   chan struct{}
}

// NewDisplay creates a display over the given tracker.
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the display loop.
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the display loop and prints a final summary line.
func (d *Display) Stop() {
	close(d.stopCh)
}

func (d *Display) displayLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.render(false)
		case <-d.stopCh:
			d.render(true)
			fmt.Println()
			return
		}
	}
}

func (d *Display) render(final bool) {
	status := d.tracker.GetStatus()
	percent := d.tracker.PercentComplete()

	line := fmt.Sprintf("%s %.1f%% | nodes %d/%d | rels %d/%d (dropped %d) | %s | ETA %s",
		progressBar(percent, 30),
		percent,
		status.NodesCopied, status.TotalNodes,
		status.RelationshipsCopied, status.TotalRelationships,
		status.RelationshipsDropped,
		FormatRate(status.RecordsPerSecond),
		FormatDuration(status.ETA),
	)
	if final {
		elapsed := time.Since(status.StartTime)
		line = fmt.Sprintf("done | nodes %d | rels %d (dropped %d) | %s in %s",
			status.NodesCopied,
			status.RelationshipsCopied, status.RelationshipsDropped,
			FormatRate(status.RecordsPerSecond),
			FormatDuration(elapsed),
		)
	}

	fmt.Printf("\r%s", line)
}

func progressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

// IsTerminalSupported reports whether stdout is a terminal.
func IsTerminalSupported() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
