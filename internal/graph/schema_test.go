package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLabels(t *testing.T) {
	m := NewMockExecutor()
	m.PushReadResult(QueryResult{Records: []map[string]any{
		{"label": "Person"},
		{"label": "Movie"},
	}})

	labels, err := ListLabels(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "Movie"}, labels)

	calls := m.CallsByMethod("ReadQuery")
	require.Len(t, calls, 1)
	assert.Equal(t, "CALL db.labels()", calls[0].Cypher)
}

func TestListRelationshipTypes(t *testing.T) {
	m := NewMockExecutor()
	m.PushReadResult(QueryResult{Records: []map[string]any{
		{"relationshipType": "KNOWS"},
		{"relationshipType": "ACTED_IN"},
	}})

	types, err := ListRelationshipTypes(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"KNOWS", "ACTED_IN"}, types)
}

func TestListLabelsError(t *testing.T) {
	m := NewMockExecutor()
	m.SetReadError(errors.New("unavailable"))

	_, err := ListLabels(context.Background(), m)
	assert.ErrorContains(t, err, "unavailable")
}

func TestListLabelsMalformedRow(t *testing.T) {
	m := NewMockExecutor()
	m.PushReadResult(QueryResult{Records: []map[string]any{
		{"label": 42},
	}})

	_, err := ListLabels(context.Background(), m)
	assert.ErrorContains(t, err, "label")
}
