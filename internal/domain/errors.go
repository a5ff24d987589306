package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a write-once entity with the same id is already stored.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict indicates the entity is not in a state that allows the change.
	ErrConflict = errors.New("conflict")
)
