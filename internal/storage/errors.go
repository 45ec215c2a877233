package storage

import "errors"

var (
	// ErrNotFound is returned when a profile document or stored object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by Create when a document with the same id exists.
	ErrAlreadyExists = errors.New("already exists")
)
