package journal

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// RunStatus represents the outcome of a transfer run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunRecord is one transfer run as recorded in the journal. Timestamp is the
// tag value written onto copied nodes; it is empty when the run was untagged,
// in which case the run cannot be undone.
type RunRecord struct {
	ID                   string    `json:"id"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	Timestamp            string    `json:"timestamp,omitempty"`
	TimestampKey         string    `json:"timestamp_key,omitempty"`
	Labels               []string  `json:"labels,omitempty"`
	Types                []string  `json:"types,omitempty"`
	Fingerprint          string    `json:"fingerprint"`
	NodesCreated         int       `json:"nodes_created"`
	RelationshipsCreated int       `json:"relationships_created"`
	Status               RunStatus `json:"status"`
	LastError            string    `json:"last_error,omitempty"`
}

// Store defines the interface for journal persistence
type Store interface {
	SaveRun(record *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	// LastTaggedRun returns the most recently started run that carries a
	// timestamp tag, or nil when none exists.
	LastTaggedRun() (*RunRecord, error)
	ListRuns(limit int) ([]*RunRecord, error)

	Close() error
}

// NewRunID returns a random 16-character hex run identifier.
func NewRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405")))[:16]
	}
	return hex.EncodeToString(buf)
}
