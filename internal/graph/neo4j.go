package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j is the Executor implementation backed by the Bolt driver.
// Each call opens its own session; the driver pools connections underneath.
type Neo4j struct {
	creds  Credentials
	driver neo4j.DriverWithContext
}

// Connect creates a driver for the given credentials and verifies
// connectivity before returning.
func Connect(ctx context.Context, creds Credentials) (*Neo4j, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	driver, err := neo4j.NewDriverWithContext(
		creds.URI,
		neo4j.BasicAuth(creds.Username, creds.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", creds.URI, err)
	}

	return &Neo4j{creds: creds, driver: driver}, nil
}

// ValidateCredentials verifies that an instance is reachable with the given
// credentials. No session outlives the call.
func ValidateCredentials(ctx context.Context, creds Credentials) error {
	c, err := Connect(ctx, creds)
	if err != nil {
		return err
	}
	return c.Close(ctx)
}

// Close closes the underlying driver.
func (c *Neo4j) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// ReadQuery runs cypher in a read transaction and collects all rows.
func (c *Neo4j) ReadQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.run(ctx, cypher, params, false)
}

// WriteQuery runs cypher in a write transaction and collects all rows.
func (c *Neo4j) WriteQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.run(ctx, cypher, params, true)
}

func (c *Neo4j) run(ctx context.Context, cypher string, params map[string]any, write bool) (QueryResult, error) {
	start := time.Now()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.creds.DatabaseName(),
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}

		return convertResult(records, summary), nil
	}

	var result any
	var err error
	if write {
		result, err = session.ExecuteWrite(ctx, work)
	} else {
		result, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return QueryResult{}, fmt.Errorf("query execution failed: %w", err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(start)
	return queryResult, nil
}

func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
	}

	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		result.Records = append(result.Records, row)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.Summary = QuerySummary{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
		}
	}

	return result
}
