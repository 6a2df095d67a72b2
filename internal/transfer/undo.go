package transfer

import (
	"context"
	"fmt"

	"neotransfer/internal/graph"

	"go.uber.org/zap"
)

// Undo deletes every node tagged with the spec's transfer timestamp,
// detaching (and deleting) any relationships on those nodes. It is the
// compensating action for a transfer and is idempotent: a second call finds
// no tagged nodes.
//
// A transfer performed without tagging cannot be undone. Relationships copied
// between pre-existing, untagged nodes are not selected by the timestamp and
// survive; this is a documented limitation of tag-based undo.
func Undo(ctx context.Context, target graph.Executor, spec *Spec, log *zap.Logger) (UndoSummary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !spec.Tagging() {
		return UndoSummary{}, ErrUndoUnavailable
	}

	query, err := undoQuery(spec.TimestampKey)
	if err != nil {
		return UndoSummary{}, err
	}

	result, err := target.WriteQuery(ctx, query, map[string]any{"datetime": spec.TimestampString()})
	if err != nil {
		return UndoSummary{}, fmt.Errorf("undoing transfer %s: %w", spec.TimestampString(), err)
	}

	summary := UndoSummary{
		NodesDeleted:         result.Summary.NodesDeleted,
		RelationshipsDeleted: result.Summary.RelationshipsDeleted,
	}
	if summary.NodesDeleted == 0 && len(result.Records) > 0 {
		summary.NodesDeleted = toInt(result.Records[0]["deleted"])
	}

	log.Info("undo complete",
		zap.String("timestamp", spec.TimestampString()),
		zap.Int("nodes_deleted", summary.NodesDeleted),
		zap.Int("relationships_deleted", summary.RelationshipsDeleted),
	)
	return summary, nil
}
