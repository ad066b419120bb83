// Package eventlog holds the in-memory contributor event log and the errors
// shared by every log implementation.
package eventlog

import (
	"errors"
)

var (
	// ErrAggregateMismatch is returned when a batch holds an event of
	// another contributor than the one it is appended for.
	ErrAggregateMismatch = errors.New("event belongs to another contributor")

	// ErrConcurrentAppend is returned when two writers raced on the same
	// contributor and the second one lost.
	ErrConcurrentAppend = errors.New("concurrent append on contributor")
)
