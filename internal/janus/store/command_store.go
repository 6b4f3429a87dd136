package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type LockCommandRecord struct {
	ID           string
	DeviceID     string
	Action       types.Action
	UserID       string
	State        types.CommandState
	DispatchedAt time.Time
	Deadline     time.Time
	ResolvedAt   *time.Time
	Detail       string
}

// CommandStore owns the per-device in-flight slot. At most one command per
// device is pending at a time; the slot lives in the store so it outlasts
// the process that claimed it.
type CommandStore interface {
	// Acquire records rec as the pending command of rec.DeviceID. A pending
	// command whose deadline is before rec.DispatchedAt is first resolved
	// as timed_out. Fails with ErrSlotBusy when a live command exists.
	Acquire(ctx context.Context, rec LockCommandRecord) error
	Resolve(ctx context.Context, id string, state types.CommandState, detail string, at time.Time) error
	Latest(ctx context.Context, deviceID string) (LockCommandRecord, error)
	// PruneOlderThan drops resolved commands dispatched before cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
