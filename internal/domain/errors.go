package domain

import "errors"

var (
	// ErrNotFound indicates that no user matches the supplied code.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation: a duplicate user code,
	// or a second session on the same calendar day.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates malformed or missing input, rejected before
	// any storage access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized indicates a failed admin password or token check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence indicates a storage failure or gateway timeout.
	ErrPersistence = errors.New("persistence failure")
)
