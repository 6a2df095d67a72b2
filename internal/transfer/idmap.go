package transfer

// IdentifierMap maps source element ids to the element ids of their copies on
// the target. It is populated by the node copier only, then frozen before
// relationship copy. After Freeze it is read-only and safe for concurrent
// readers; source-space and target-space ids are never compared directly.
type IdentifierMap struct {
	entries map[string]string
	frozen  bool
}

// NewIdentifierMap creates an empty, unfrozen map.
func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{entries: make(map[string]string)}
}

// Set records a source id -> target id pairing. Fails once frozen.
func (m *IdentifierMap) Set(sourceID, targetID string) error {
	if m.frozen {
		return ErrFrozenIdentifierMap
	}
	m.entries[sourceID] = targetID
	return nil
}

// Get resolves a source element id to its target counterpart.
func (m *IdentifierMap) Get(sourceID string) (string, bool) {
	targetID, ok := m.entries[sourceID]
	return targetID, ok
}

// Len returns the number of pairings.
func (m *IdentifierMap) Len() int {
	return len(m.entries)
}

// Freeze transitions the map to read-only.
func (m *IdentifierMap) Freeze() {
	m.frozen = true
}

// Frozen reports whether the map is read-only.
func (m *IdentifierMap) Frozen() bool {
	return m.frozen
}
