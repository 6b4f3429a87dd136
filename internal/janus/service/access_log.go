package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200

	auditWriteTimeout = 5 * time.Second
)

// Event is one access decision as reported by a caller. The log assigns
// the timestamp.
type Event struct {
	UserID      string
	MatchedName string
	Method      types.AccessMethod
	Outcome     types.AccessOutcome
	Action      types.Action
	DeviceID    string
	Reason      string
}

type Page struct {
	Before int64 // exclusive seq cursor; 0 starts at the newest event
	Limit  int
}

type EventPage struct {
	Events     []store.AccessEventRecord
	NextCursor int64 // 0 when there is nothing older
}

// AccessLog is the append-only audit trail. Writes never fail the caller:
// a store error is logged as audit_write_failed and counted.
type AccessLog struct {
	store  store.AccessEventStore
	logger *slog.Logger
	now    Clock

	// mu orders timestamp assignment and insert together, so seq order
	// and timestamp order agree.
	mu     sync.Mutex
	last   time.Time
	seeded bool

	failures atomic.Int64
}

func NewAccessLog(st store.AccessEventStore, logger *slog.Logger, now Clock) *AccessLog {
	return &AccessLog{store: st, logger: logger, now: now.orDefault()}
}

// Record appends ev and returns its seq. ok is false when the write
// failed; the caller's operation proceeds either way.
func (l *AccessLog) Record(ctx context.Context, ev Event) (seq int64, ok bool) {
	// Detach from the request so a client hanging up mid-write does not
	// lose the entry.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.seeded {
		l.seed(wctx)
	}

	// Stores keep millisecond precision.
	ts := l.now().UTC().Truncate(time.Millisecond)
	if ts.Before(l.last) {
		ts = l.last
	}
	l.last = ts

	seq, err := l.store.RecordEvent(wctx, store.AccessEventRecord{
		OccurredAt:  ts,
		UserID:      ev.UserID,
		MatchedName: ev.MatchedName,
		Method:      ev.Method,
		Outcome:     ev.Outcome,
		Action:      ev.Action,
		DeviceID:    ev.DeviceID,
		Reason:      ev.Reason,
	})
	if err != nil {
		n := l.failures.Add(1)
		l.logger.Error("audit_write_failed",
			"err", err,
			"method", ev.Method,
			"outcome", ev.Outcome,
			"action", ev.Action,
			"device_id", ev.DeviceID,
			"user_id", ev.UserID,
			"failures_total", n,
		)
		return 0, false
	}
	return seq, true
}

// seed starts the clamp at the newest stored event so timestamps stay
// non-decreasing across restarts. Caller holds mu.
func (l *AccessLog) seed(ctx context.Context) {
	l.seeded = true
	newest, err := l.store.QueryEvents(ctx, store.AccessEventQuery{Limit: 1})
	if err != nil {
		l.logger.Warn("audit log: could not read newest event", "err", err)
		return
	}
	if len(newest) == 1 {
		l.last = newest[0].OccurredAt.UTC()
	}
}

// Failures is the number of audit writes lost since start.
func (l *AccessLog) Failures() int64 { return l.failures.Load() }

// Query pages the log newest first. Admins see everything; residents see
// only events attributed to them.
func (l *AccessLog) Query(ctx context.Context, p auth.Principal, page Page) (EventPage, error) {
	if !p.Satisfies(types.RoleResident) {
		return EventPage{}, ErrForbidden
	}
	if page.Before < 0 {
		return EventPage{}, ErrValidation
	}

	limit := page.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	q := store.AccessEventQuery{Before: page.Before, Limit: limit}
	if !p.IsAdmin() {
		q.UserID = p.UserID
	}

	events, err := l.store.QueryEvents(ctx, q)
	if err != nil {
		return EventPage{}, err
	}

	out := EventPage{Events: events}
	if len(events) == limit {
		out.NextCursor = events[len(events)-1].Seq
	}
	return out, nil
}
