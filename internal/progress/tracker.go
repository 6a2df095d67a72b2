package progress

import (
	"fmt"
	"sync"
	"time"
)

// Status is a snapshot of transfer progress.
type Status struct {
	TotalNodes           int64
	TotalRelationships   int64
	NodesCopied          int64
	RelationshipsCopied  int64
	RelationshipsDropped int64
	StartTime            time.Time
	LastUpdateTime       time.Time
	RecordsPerSecond     float64
	ETA                  time.Duration
}

// Tracker tracks record counts during a transfer. All methods are safe for
// concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates a tracker starting now.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{
		status: Status{StartTime: now, LastUpdateTime: now},
	}
}

// SetTotals sets the expected record counts, used for percentage and ETA.
func (t *Tracker) SetTotals(nodes, relationships int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.TotalNodes = nodes
	t.status.TotalRelationships = relationships
}

// AddNodes counts nodes copied to the target.
func (t *Tracker) AddNodes(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.NodesCopied += int64(n)
	t.update()
}

// AddRelationships counts relationships copied to the target.
func (t *Tracker) AddRelationships(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.RelationshipsCopied += int64(n)
	t.update()
}

// AddDropped counts relationships dropped because an endpoint was not copied.
func (t *Tracker) AddDropped(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.RelationshipsDropped += int64(n)
	t.update()
}

// update recomputes rate and ETA; callers hold the lock.
func (t *Tracker) update() {
	now := time.Now()
	t.status.LastUpdateTime = now

	processed := t.status.NodesCopied + t.status.RelationshipsCopied + t.status.RelationshipsDropped
	elapsed := now.Sub(t.status.StartTime)
	if elapsed <= 0 {
		return
	}
	t.status.RecordsPerSecond = float64(processed) / elapsed.Seconds()

	total := t.status.TotalNodes + t.status.TotalRelationships
	remaining := total - processed
	if total == 0 || remaining <= 0 || t.status.RecordsPerSecond == 0 {
		t.status.ETA = 0
		return
	}
	t.status.ETA = time.Duration(float64(remaining)/t.status.RecordsPerSecond) * time.Second
}

// GetStatus returns the current snapshot.
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// PercentComplete returns overall progress against the known totals.
func (t *Tracker) PercentComplete() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := t.status.TotalNodes + t.status.TotalRelationships
	if total == 0 {
		return 0
	}
	processed := t.status.NodesCopied + t.status.RelationshipsCopied + t.status.RelationshipsDropped
	return float64(processed) / float64(total) * 100
}

// FormatRate formats a records-per-second rate.
func FormatRate(recordsPerSecond float64) string {
	return fmt.Sprintf("%.0f rec/s", recordsPerSecond)
}

// FormatDuration formats a duration as h/m/s.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
