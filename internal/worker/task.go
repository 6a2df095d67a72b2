package worker

import "neotransfer/internal/graph"

// Task is one batched create statement to run against the target.
type Task struct {
	Kind   string // "nodes" or "relationships"
	Group  string // label-set or type-group key, for logging
	Cypher string
	Params map[string]any
	Rows   int
}

// Result pairs a task with its outcome.
type Result struct {
	Task   Task
	Result graph.QueryResult
	Err    error
}
