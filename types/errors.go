package types

import "errors"

// Error taxonomy shared across the governance components.
// Callers classify failures with errors.Is.
var (
	// ErrDuplicateIdentifier means an id or name is already registered
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrNotFound means the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means a status change is not legal
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConnectorUnavailable means a target database could not be reached.
	// Recoverable: the engine marks the connection error and moves on.
	ErrConnectorUnavailable = errors.New("connector unavailable")

	// ErrEvaluation means a single rule check failed. Recoverable:
	// recorded as a synthetic high-severity finding, not an abort.
	ErrEvaluation = errors.New("evaluation error")

	// ErrInvalidEvent means an audit event is missing required fields
	ErrInvalidEvent = errors.New("invalid audit event")

	// ErrPersistence means the backing store failed after retries
	ErrPersistence = errors.New("persistence error")
)
