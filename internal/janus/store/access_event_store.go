package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// AccessEventRecord is one entry in the audit log. Seq is assigned by the
// store on insert and is strictly increasing.
type AccessEventRecord struct {
	Seq         int64
	OccurredAt  time.Time
	UserID      string // empty when no identity was matched
	MatchedName string
	Method      types.AccessMethod
	Outcome     types.AccessOutcome
	Action      types.Action
	DeviceID    string
	Reason      string
}

// AccessEventQuery selects a page of events, newest first. Before is an
// exclusive seq cursor (0 = from the newest). UserID restricts the page to
// one identity when non-empty.
type AccessEventQuery struct {
	UserID string
	Before int64
	Limit  int
}

// AccessEventStore persists access decisions as an append-only audit log.
// Events are never updated or deleted.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) (int64, error)
	QueryEvents(ctx context.Context, q AccessEventQuery) ([]AccessEventRecord, error)
}
