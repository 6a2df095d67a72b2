package transfer

import (
	"context"
	"fmt"

	"neotransfer/internal/graph"

	"go.uber.org/zap"
)

// ResetTarget clears a target database before a transfer: every named
// constraint is dropped one statement at a time (bulk drop is not supported),
// then every named index, then nodes and their attached relationships are
// deleted in batches of batchSize until a batch deletes nothing. Irreversible,
// and always a full wipe regardless of how the transfer itself is scoped.
func ResetTarget(ctx context.Context, target graph.Executor, batchSize int, log *zap.Logger) (ResetSummary, error) {
	var summary ResetSummary
	if log == nil {
		log = zap.NewNop()
	}

	constraints, err := schemaNames(ctx, target, showConstraintsQuery)
	if err != nil {
		return summary, fmt.Errorf("listing constraints: %w", err)
	}
	for _, name := range constraints {
		query, err := dropConstraintQuery(name)
		if err != nil {
			return summary, err
		}
		if _, err := target.WriteQuery(ctx, query, nil); err != nil {
			return summary, fmt.Errorf("dropping constraint %q: %w", name, err)
		}
		summary.ConstraintsDropped++
	}

	// Constraint-backing indexes are already gone by now; IF EXISTS covers
	// the overlap.
	indexes, err := schemaNames(ctx, target, showIndexesQuery)
	if err != nil {
		return summary, fmt.Errorf("listing indexes: %w", err)
	}
	for _, name := range indexes {
		query, err := dropIndexQuery(name)
		if err != nil {
			return summary, err
		}
		if _, err := target.WriteQuery(ctx, query, nil); err != nil {
			return summary, fmt.Errorf("dropping index %q: %w", name, err)
		}
		summary.IndexesDropped++
	}

	for {
		result, err := target.WriteQuery(ctx, resetDeleteQuery, map[string]any{"batch_size": batchSize})
		if err != nil {
			return summary, fmt.Errorf("deleting nodes: %w", err)
		}
		deleted := 0
		if len(result.Records) > 0 {
			deleted = toInt(result.Records[0]["deleted"])
		}
		if deleted == 0 {
			break
		}
		summary.NodesDeleted += deleted
		log.Debug("reset batch deleted", zap.Int("nodes", deleted))
	}

	return summary, nil
}

func schemaNames(ctx context.Context, target graph.Executor, query string) ([]string, error) {
	result, err := target.ReadQuery(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		name, ok := record["name"].(string)
		if !ok || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
