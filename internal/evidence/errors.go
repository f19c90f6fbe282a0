package evidence

import "github.com/rotisserie/eris"

var (
	// ErrNotFound indicates a registry lookup miss. It is used internally
	// by the synthesis path and never surfaced to Synthesize callers.
	ErrNotFound = eris.New("evidence: record not found")

	// ErrDuplicateID indicates an insertion conflict. The store is
	// append-only, so a duplicate ID is an upstream bug and is propagated.
	ErrDuplicateID = eris.New("evidence: duplicate record id")
)
