// Package store defines the persistence contracts of the access-control
// core. Implementations live in the memory and sqlite subpackages.
package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStateConflict means the row exists but is not in the state the
	// caller expected to transition from.
	ErrStateConflict = errors.New("record not in expected state")
	ErrSlotBusy      = errors.New("device has a command in flight")
)
