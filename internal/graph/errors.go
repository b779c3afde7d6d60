package graph

import "errors"

var (
	// ErrSkipped marks an intended no-op: the target is denylisted.
	// Callers log and move on; it is not a failure.
	ErrSkipped = errors.New("graph: node skipped")

	// ErrStoreUnavailable wraps store connectivity failures. The store
	// never retries; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("graph: store unavailable")

	// ErrInconsistentCounter means an outgoing edge exists whose source
	// counter is zero. Weighting halts rather than emit wrong weights.
	ErrInconsistentCounter = errors.New("graph: inconsistent counter")
)
