package store

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when an insert collides with an existing username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrIncompleteRecord is returned when a record has neither a password
	// hash nor a federated id.
	ErrIncompleteRecord = errors.New("record needs a password hash or a federated id")
)
