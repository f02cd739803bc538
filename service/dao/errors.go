package dao

import "errors"

// Sentinel store errors; callers detect them with errors.Is.
var (
	// ErrNotFound is returned when no record has the requested key.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID is returned for an empty key.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when Save receives a nil record.
	ErrNilEntity = errors.New("dao: nil entity")
)
