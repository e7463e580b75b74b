package models

import "errors"

// Error kinds surfaced by the core. Callers match them with errors.Is.
var (
	// ErrInvalidInput is returned for requests rejected before anything is
	// written: self-swipes, empty messages, malformed coordinates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a profile or match does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCollaborator wraps failures of the persistence or notification
	// backends. The core never retries; the caller decides.
	ErrCollaborator = errors.New("collaborator failure")
)
