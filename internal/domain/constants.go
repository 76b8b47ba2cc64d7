package domain

import "errors"

// Merge request lifecycle states as reported by GitLab.
const (
	StateOpened = "opened"
	StateMerged = "merged"
	StateClosed = "closed"
)

// ErrInvalidInput is returned when a caller violates the input contract of the
// conflict detection core (nil collection, nil entry or nil file set).
var ErrInvalidInput = errors.New("invalid input")
