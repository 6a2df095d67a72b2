package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierMapSetGet(t *testing.T) {
	m := NewIdentifierMap()
	require.NoError(t, m.Set("4:src:1", "4:dst:9"))
	require.NoError(t, m.Set("4:src:2", "4:dst:10"))

	assert.Equal(t, 2, m.Len())

	target, ok := m.Get("4:src:1")
	assert.True(t, ok)
	assert.Equal(t, "4:dst:9", target)

	_, ok = m.Get("4:src:99")
	assert.False(t, ok)
}

func TestIdentifierMapFreeze(t *testing.T) {
	m := NewIdentifierMap()
	require.NoError(t, m.Set("a", "x"))

	assert.False(t, m.Frozen())
	m.Freeze()
	assert.True(t, m.Frozen())

	err := m.Set("b", "y")
	assert.ErrorIs(t, err, ErrFrozenIdentifierMap)

	// Reads still work after freezing.
	target, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", target)
	assert.Equal(t, 1, m.Len())
}

func TestIdentifierMapOverwriteBeforeFreeze(t *testing.T) {
	m := NewIdentifierMap()
	require.NoError(t, m.Set("a", "x"))
	require.NoError(t, m.Set("a", "y"))

	target, _ := m.Get("a")
	assert.Equal(t, "y", target)
	assert.Equal(t, 1, m.Len())
}
