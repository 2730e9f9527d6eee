package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")

	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")

	// ErrTransient indicates serialization or lock contention; the
	// operation left no partial state and the caller may retry.
	ErrTransient = errors.New("repository: transient failure")
)
