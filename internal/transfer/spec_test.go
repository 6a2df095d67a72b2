package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpecDefaults(t *testing.T) {
	spec, err := NewSpec(Names("Person"), Names("KNOWS"))
	require.NoError(t, err)

	assert.Equal(t, DefaultTimestampKey, spec.TimestampKey)
	assert.Equal(t, DefaultBatchSize, spec.BatchSize)
	assert.True(t, spec.Tagging())
	assert.False(t, spec.ResetTarget)
	assert.Equal(t, []string{"Person"}, spec.Labels())
	assert.Equal(t, []string{"KNOWS"}, spec.Types())
	assert.True(t, spec.UsesElementIDIdentity())
}

func TestNewSpecUnfiltered(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{})
	require.NoError(t, err)

	assert.Nil(t, spec.Labels())
	assert.Nil(t, spec.Types())
	assert.True(t, spec.UsesElementIDIdentity())
}

func TestNewSpecOptions(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	spec, err := NewSpec(Names("Person"), Selection{},
		WithTimestampKey("copied_at"),
		WithTimestamp(ts),
		WithBatchSize(50),
		WithResetTarget(true),
	)
	require.NoError(t, err)

	assert.Equal(t, "copied_at", spec.TimestampKey)
	assert.Equal(t, 50, spec.BatchSize)
	assert.True(t, spec.ResetTarget)
	assert.Equal(t, "2024-03-01T12:00:00Z", spec.TimestampString())
}

func TestNewSpecWithoutTagging(t *testing.T) {
	spec, err := NewSpec(Selection{}, Selection{}, WithoutTagging())
	require.NoError(t, err)
	assert.False(t, spec.Tagging())
}

func TestNewSpecRejectsBadBatchSize(t *testing.T) {
	_, err := NewSpec(Selection{}, Selection{}, WithBatchSize(0))
	assert.ErrorIs(t, err, ErrMalformedSpec)

	_, err = NewSpec(Selection{}, Selection{}, WithBatchSize(-5))
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestNewSpecRejectsAmbiguousSelection(t *testing.T) {
	both := Selection{
		names:  []string{"Person"},
		mapped: map[string]KeyTransferSpec{"Person": {}},
	}
	_, err := NewSpec(both, Selection{})
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestNewSpecRejectsEmptyNames(t *testing.T) {
	_, err := NewSpec(Names(""), Selection{})
	assert.ErrorIs(t, err, ErrMalformedSpec)

	_, err = NewSpec(Selection{}, Mapped(map[string]KeyTransferSpec{"": {}}))
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestSpecLabelsSorted(t *testing.T) {
	spec, err := NewSpec(Names("Zebra", "Alpha", "Middle"), Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Middle", "Zebra"}, spec.Labels())
}

func TestSpecTimestampString(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	spec, err := NewSpec(Selection{}, Selection{},
		WithTimestamp(time.Date(2024, 3, 1, 14, 0, 0, 123456789, loc)))
	require.NoError(t, err)

	// Always UTC, parseable back with nanosecond precision.
	assert.Equal(t, "2024-03-01T12:00:00.123456789Z", spec.TimestampString())
	_, perr := time.Parse(time.RFC3339Nano, spec.TimestampString())
	assert.NoError(t, perr)
}

func TestSpecKeyMappedIdentity(t *testing.T) {
	spec, err := NewSpec(Mapped(map[string]KeyTransferSpec{
		"Person": {Source: "uuid", Target: "src_uuid"},
	}), Selection{})
	require.NoError(t, err)

	assert.False(t, spec.UsesElementIDIdentity())

	keySpec := spec.nodeKeySpec([]string{"Employee", "Person"})
	assert.Equal(t, "uuid", keySpec.Source)
	assert.Equal(t, "src_uuid", keySpec.Target)

	// Unmapped labels fall back to the element-id defaults.
	keySpec = spec.nodeKeySpec([]string{"Movie"})
	assert.Equal(t, ElementIDKey, keySpec.Source)
	assert.Equal(t, DefaultTargetKey, keySpec.Target)
}

func TestSpecKeyMappedDefaults(t *testing.T) {
	spec, err := NewSpec(Mapped(map[string]KeyTransferSpec{
		"Person": {},
	}), Selection{})
	require.NoError(t, err)

	// Empty fields in a mapping mean the sentinel and the default target key.
	keySpec := spec.nodeKeySpec([]string{"Person"})
	assert.Equal(t, ElementIDKey, keySpec.Source)
	assert.Equal(t, DefaultTargetKey, keySpec.Target)
	assert.True(t, spec.UsesElementIDIdentity())
}

func TestSpecRelKeySpec(t *testing.T) {
	spec, err := NewSpec(Selection{}, Mapped(map[string]KeyTransferSpec{
		"KNOWS": {Source: "since", Target: "orig_since"},
	}))
	require.NoError(t, err)

	keySpec := spec.relKeySpec("KNOWS")
	assert.Equal(t, "since", keySpec.Source)

	keySpec = spec.relKeySpec("LIKES")
	assert.Equal(t, ElementIDKey, keySpec.Source)
}

func TestSpecFingerprint(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a, err := NewSpec(Names("Person"), Names("KNOWS"), WithTimestamp(ts))
	require.NoError(t, err)
	b, err := NewSpec(Names("Person"), Names("KNOWS"), WithTimestamp(ts))
	require.NoError(t, err)
	c, err := NewSpec(Names("Movie"), Names("KNOWS"), WithTimestamp(ts))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestLabelSetKeyOrderInsensitive(t *testing.T) {
	assert.Equal(t, labelSetKey([]string{"A", "B"}), labelSetKey([]string{"B", "A"}))
	assert.NotEqual(t, labelSetKey([]string{"A"}), labelSetKey([]string{"A", "B"}))
	assert.Equal(t, "", labelSetKey(nil))
}
