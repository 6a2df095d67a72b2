package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"neotransfer/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUndoUntaggedTransfer(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{}, WithoutTagging())
	require.NoError(t, err)

	target := graph.NewMockExecutor()
	_, err = Undo(context.Background(), target, spec, zap.NewNop())
	assert.ErrorIs(t, err, ErrUndoUnavailable)
	assert.Empty(t, target.Calls())
}

func TestUndoDeletesTaggedNodes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	spec, err := NewSpec(Selection{}, Selection{}, WithTimestamp(ts))
	require.NoError(t, err)

	target := graph.NewMockExecutor()
	target.PushWriteResult(graph.QueryResult{
		Records: []map[string]any{{"deleted": int64(3)}},
		Summary: graph.QuerySummary{NodesDeleted: 3, RelationshipsDeleted: 2},
	})

	summary, err := Undo(context.Background(), target, spec, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.NodesDeleted)
	assert.Equal(t, 2, summary.RelationshipsDeleted)

	writes := target.CallsByMethod("WriteQuery")
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Cypher, "n.`"+DefaultTimestampKey+"` = $datetime")
	assert.Equal(t, "2024-03-01T12:00:00Z", writes[0].Params["datetime"])
}

func TestUndoFallsBackToReturnedCount(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)

	target := graph.NewMockExecutor()
	target.PushWriteResult(graph.QueryResult{
		Records: []map[string]any{{"deleted": int64(4)}},
	})

	summary, err := Undo(context.Background(), target, spec, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.NodesDeleted)
}

func TestUndoIdempotent(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)

	// Nothing tagged with this timestamp anymore.
	target := graph.NewMockExecutor()
	summary, err := Undo(context.Background(), target, spec, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, UndoSummary{}, summary)
}

func TestUndoRejectsBadTimestampKey(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{}, WithTimestampKey("bad key"))
	require.NoError(t, err)

	_, err = Undo(context.Background(), graph.NewMockExecutor(), spec, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestUndoQueryError(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)

	target := graph.NewMockExecutor()
	target.SetWriteError(errors.New("timeout"))

	_, err = Undo(context.Background(), target, spec, zap.NewNop())
	assert.ErrorContains(t, err, "timeout")
}
