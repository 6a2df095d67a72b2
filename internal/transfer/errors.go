package transfer

import "errors"

var (
	// ErrMalformedSpec means the transfer spec could not be normalized.
	ErrMalformedSpec = errors.New("malformed transfer spec")

	// ErrInvalidIdentifier means a label, type or property name is not a
	// bare identifier and cannot be interpolated into a query template.
	ErrInvalidIdentifier = errors.New("unsafe identifier")

	// ErrTypeMismatch means a fetched relationship's recorded type disagrees
	// with the type filter it was fetched under.
	ErrTypeMismatch = errors.New("relationship type mismatch")

	// ErrUndoUnavailable means the transfer was performed without timestamp
	// tagging, so its output cannot be selected for deletion.
	ErrUndoUnavailable = errors.New("undo unavailable: transfer was not timestamp-tagged")

	// ErrFrozenIdentifierMap means a write was attempted after Freeze.
	ErrFrozenIdentifierMap = errors.New("identifier map is frozen")
)
