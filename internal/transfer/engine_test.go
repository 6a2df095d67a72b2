package transfer

import (
	"context"
	"errors"
	"testing"

	"neotransfer/internal/graph"
	"neotransfer/internal/metrics"
	"neotransfer/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptTransfer queues a two-node, one-relationship transfer on the mocks.
func scriptTransfer(source, target *graph.MockExecutor) {
	source.PushReadResult(graph.QueryResult{Records: []map[string]any{
		nodeRecord("4:src:1", []any{"Person"}, map[string]any{"name": "alice"}),
		nodeRecord("4:src:2", []any{"Person"}, map[string]any{"name": "bob"}),
	}})
	source.PushReadResult(graph.QueryResult{})
	source.PushReadResult(graph.QueryResult{Records: []map[string]any{
		relRecord("5:src:1", "KNOWS", "4:src:1", "4:src:2", map[string]any{}),
	}})

	target.PushWriteResult(graph.QueryResult{
		Records: []map[string]any{
			{"new_id": "4:dst:1", "old_id": "4:src:1"},
			{"new_id": "4:dst:2", "old_id": "4:src:2"},
		},
		Summary: graph.QuerySummary{NodesCreated: 2, PropertiesSet: 6},
	})
	target.PushWriteResult(graph.QueryResult{
		Records: []map[string]any{
			{"rel_id": "5:dst:1", "type": "KNOWS", "start": "4:dst:1", "end": "4:dst:2"},
		},
		Summary: graph.QuerySummary{RelationshipsCreated: 1, PropertiesSet: 2},
	})
}

func TestNewEngineValidation(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)

	_, err = NewEngine(nil, graph.NewMockExecutor(), spec, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(graph.NewMockExecutor(), graph.NewMockExecutor(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestEngineRun(t *testing.T) {
	source := graph.NewMockExecutor()
	target := graph.NewMockExecutor()
	scriptTransfer(source, target)

	spec, err := NewSpec(Names("Person"), Names("KNOWS"))
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.WasSuccessful)
	assert.Equal(t, 2, result.NodesCreated)
	assert.Equal(t, 1, result.RelationshipsCreated)
	assert.Equal(t, 3, result.RecordsTotal)
	assert.Equal(t, 3, result.RecordsCompleted)
	assert.Equal(t, 8, result.PropertiesSet)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.GreaterOrEqual(t, result.SecondsToComplete, 0.0)
}

func TestEngineRunWithReset(t *testing.T) {
	source := graph.NewMockExecutor()
	target := graph.NewMockExecutor()

	// Reset consumes the first write results: one delete batch, then zero.
	target.PushWriteResult(graph.QueryResult{Records: []map[string]any{{"deleted": int64(7)}}})
	target.PushWriteResult(graph.QueryResult{Records: []map[string]any{{"deleted": int64(0)}}})
	scriptTransfer(source, target)

	spec, err := NewSpec(Names("Person"), Names("KNOWS"), WithResetTarget(true))
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.WasSuccessful)
	assert.Equal(t, 2, result.NodesCreated)
}

func TestEngineRunNodeCopyFailure(t *testing.T) {
	source := graph.NewMockExecutor()
	source.SetReadError(errors.New("connection reset"))

	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, graph.NewMockExecutor())

	result, err := engine.Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	require.NotNil(t, result)
	assert.False(t, result.WasSuccessful)
}

func TestEngineStream(t *testing.T) {
	source := graph.NewMockExecutor()
	target := graph.NewMockExecutor()
	scriptTransfer(source, target)

	spec, err := NewSpec(Names("Person"), Names("KNOWS"))
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, target)

	results, errs := engine.Stream(context.Background())

	var collected []UploadResult
	for result := range results {
		collected = append(collected, result)
	}
	require.NoError(t, <-errs)

	// One partial result after node copy, one final result.
	require.Len(t, collected, 2)
	partial, final := collected[0], collected[1]

	assert.Equal(t, 2, partial.NodesCreated)
	assert.Equal(t, 0, partial.RelationshipsCreated)
	assert.False(t, partial.WasSuccessful)

	assert.True(t, final.WasSuccessful)
	assert.Equal(t, 2, final.NodesCreated)
	assert.Equal(t, 1, final.RelationshipsCreated)
}

func TestEngineStreamFailure(t *testing.T) {
	source := graph.NewMockExecutor()
	source.SetReadError(errors.New("boom"))

	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, graph.NewMockExecutor())

	results, errs := engine.Stream(context.Background())

	var collected []UploadResult
	for result := range results {
		collected = append(collected, result)
	}
	assert.ErrorContains(t, <-errs, "boom")

	require.Len(t, collected, 1)
	assert.False(t, collected[0].WasSuccessful)
}

func TestEngineCount(t *testing.T) {
	source := graph.NewMockExecutor()
	source.PushReadResult(graph.QueryResult{Records: []map[string]any{{"count": int64(5)}}})
	source.PushReadResult(graph.QueryResult{Records: []map[string]any{{"count": int64(7)}}})

	spec, err := NewSpec(Names("Person"), Names("KNOWS"))
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, graph.NewMockExecutor())

	nodes, rels, err := engine.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), nodes)
	assert.Equal(t, int64(7), rels)

	reads := source.CallsByMethod("ReadQuery")
	require.Len(t, reads, 2)
	assert.Equal(t, []string{"Person"}, reads[0].Params["labels"])
	assert.Equal(t, []string{"KNOWS"}, reads[1].Params["types"])
}

func TestEngineRunUpdatesTracker(t *testing.T) {
	source := graph.NewMockExecutor()
	target := graph.NewMockExecutor()
	scriptTransfer(source, target)

	tracker := progress.NewTracker()
	collector := metrics.New()

	spec, err := NewSpec(Names("Person"), Names("KNOWS"))
	require.NoError(t, err)
	engine := newTestEngine(t, spec, source, target,
		WithTracker(tracker), WithMetrics(collector))

	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	status := tracker.GetStatus()
	assert.Equal(t, int64(2), status.NodesCopied)
	assert.Equal(t, int64(1), status.RelationshipsCopied)
	assert.Equal(t, int64(0), status.RelationshipsDropped)
}
