package graph

import (
	"context"
	"fmt"
)

const (
	listLabelsQuery   = "CALL db.labels()"
	listRelTypesQuery = "CALL db.relationshipTypes()"
)

// ListLabels returns the node labels present in an instance.
func ListLabels(ctx context.Context, exec Executor) ([]string, error) {
	result, err := exec.ReadQuery(ctx, listLabelsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	return stringColumn(result, "label")
}

// ListRelationshipTypes returns the relationship types present in an instance.
func ListRelationshipTypes(ctx context.Context, exec Executor) ([]string, error) {
	result, err := exec.ReadQuery(ctx, listRelTypesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("listing relationship types: %w", err)
	}
	return stringColumn(result, "relationshipType")
}

func stringColumn(result QueryResult, column string) ([]string, error) {
	values := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		value, ok := record[column].(string)
		if !ok {
			return nil, fmt.Errorf("missing %q column in result row", column)
		}
		values = append(values, value)
	}
	return values, nil
}
