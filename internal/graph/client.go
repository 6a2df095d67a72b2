// Package graph provides access to Neo4j instances behind a small query
// executor interface so the copy engine can be tested without a live database.
package graph

import (
	"context"
	"fmt"
	"time"
)

// Credentials identifies one Neo4j instance.
type Credentials struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseName returns the logical database, defaulting to "neo4j".
func (c Credentials) DatabaseName() string {
	if c.Database == "" {
		return "neo4j"
	}
	return c.Database
}

// Validate checks that the credentials are complete.
func (c Credentials) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("credentials: URI is required")
	}
	if c.Username == "" {
		return fmt.Errorf("credentials: username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("credentials: password is required")
	}
	return nil
}

// Executor issues Cypher queries against one database endpoint.
// Implementations are stateless per call and own no cross-call data.
type Executor interface {
	// ReadQuery runs a query in a read transaction.
	ReadQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)

	// WriteQuery runs a query in a write transaction.
	WriteQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// QueryResult holds the rows, column names and summary of one query.
type QueryResult struct {
	Records []map[string]any
	Columns []string
	Summary QuerySummary
}

// QuerySummary carries the write counters reported by the database.
type QuerySummary struct {
	ExecutionTime        time.Duration
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}
