package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func taggedRun(id string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:           id,
		StartedAt:    startedAt,
		Timestamp:    startedAt.UTC().Format(time.RFC3339Nano),
		TimestampKey: "_transfer_timestamp",
		Labels:       []string{"Person"},
		Types:        []string{"KNOWS"},
		Fingerprint:  "abc123",
		Status:       StatusRunning,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)

	run := taggedRun("run-1", time.Now())
	require.NoError(t, store.SaveRun(run))

	loaded, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.Timestamp, loaded.Timestamp)
	assert.Equal(t, []string{"Person"}, loaded.Labels)
	assert.Equal(t, []string{"KNOWS"}, loaded.Types)
	assert.Equal(t, StatusRunning, loaded.Status)
}

func TestGetRunMissing(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveRunUpserts(t *testing.T) {
	store := newTestStore(t)

	run := taggedRun("run-1", time.Now())
	require.NoError(t, store.SaveRun(run))

	run.Status = StatusCompleted
	run.NodesCreated = 42
	run.RelationshipsCreated = 7
	run.FinishedAt = time.Now()
	require.NoError(t, store.SaveRun(run))

	loaded, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, 42, loaded.NodesCreated)
	assert.Equal(t, 7, loaded.RelationshipsCreated)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLastTaggedRun(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveRun(taggedRun("old", base)))
	require.NoError(t, store.SaveRun(taggedRun("new", base.Add(30*time.Minute))))

	// Untagged runs are never candidates for undo.
	untagged := &RunRecord{
		ID:          "untagged",
		StartedAt:   base.Add(45 * time.Minute),
		Fingerprint: "def456",
		Status:      StatusCompleted,
	}
	require.NoError(t, store.SaveRun(untagged))

	last, err := store.LastTaggedRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "new", last.ID)
}

func TestLastTaggedRunEmpty(t *testing.T) {
	store := newTestStore(t)

	last, err := store.LastTaggedRun()
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestListRunsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(taggedRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	assert.Error(t, store.SaveRun(taggedRun("x", time.Now())))
	_, err := store.GetRun("x")
	assert.Error(t, err)
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
