package transfer

import "time"

// NodeRecord is one in-flight source node.
type NodeRecord struct {
	EID    string
	Labels []string
	Props  map[string]any
}

// CreatedRelationship describes one relationship created on the target.
type CreatedRelationship struct {
	Type      string
	ElementID string
	Start     string
	End       string
}

// UploadResult aggregates one transfer. The streaming variant emits a partial
// result after node copy and the final result after relationship copy.
type UploadResult struct {
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	SecondsToComplete    float64   `json:"seconds_to_complete"`
	RecordsTotal         int       `json:"records_total"`
	RecordsCompleted     int       `json:"records_completed"`
	WasSuccessful        bool      `json:"was_successful"`
	NodesCreated         int       `json:"nodes_created"`
	RelationshipsCreated int       `json:"relationships_created"`
	PropertiesSet        int       `json:"properties_set"`
}

// ResetSummary reports what a target reset removed.
type ResetSummary struct {
	ConstraintsDropped int
	IndexesDropped     int
	NodesDeleted       int
}

// UndoSummary reports what an undo removed.
type UndoSummary struct {
	NodesDeleted         int
	RelationshipsDeleted int
}
