package orchestra

import "errors"

var (
	// ErrExecutionExists is returned by Store.Create for a duplicate id.
	ErrExecutionExists = errors.New("execution already exists")
	// ErrExecutionNotFound is returned by Store.Load for an unknown id.
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrVersionConflict is returned by Store.CompareAndSwap when the
	// expected version is stale. Always fatal to the execution attempt.
	ErrVersionConflict = errors.New("execution version conflict")
	// ErrInvalidTransition is returned for illegal status edges.
	ErrInvalidTransition = errors.New("invalid status transition")
)
