package database

import "errors"

var (
	// ErrStorageUnavailable wraps storage failures that persisted after retrying
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateEmail is returned when an owner with the same email exists
	ErrDuplicateEmail = errors.New("an owner with this email already exists")
)
