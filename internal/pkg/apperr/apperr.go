package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict signals a duplicate indexing request while a run is active.
	ErrConflict = errors.New("conflict")
	// ErrProvider signals the embedding/completion provider was unreachable
	// or rejected the request.
	ErrProvider = errors.New("provider error")
	// ErrDegenerateVector signals a zero-magnitude or mismatched vector.
	ErrDegenerateVector = errors.New("degenerate vector")
)
