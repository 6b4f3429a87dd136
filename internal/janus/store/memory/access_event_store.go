package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

// AccessEventStore is an in-memory append-only log of access decisions.
// It is intended for use in tests and dev environments.
type AccessEventStore struct {
	mu     sync.Mutex
	seq    int64
	events []store.AccessEventRecord

	// failWith, when set, is returned by RecordEvent. Test hook for the
	// degraded-audit path.
	failWith error
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{}
}

func (s *AccessEventStore) RecordEvent(_ context.Context, rec store.AccessEventRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.seq++
	rec.Seq = s.seq
	s.events = append(s.events, rec)
	return rec.Seq, nil
}

func (s *AccessEventStore) QueryEvents(_ context.Context, q store.AccessEventQuery) ([]store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AccessEventRecord
	for _, ev := range s.events {
		if q.Before > 0 && ev.Seq >= q.Before {
			continue
		}
		if q.UserID != "" && ev.UserID != q.UserID {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].Seq > out[j].Seq
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// FailWith makes subsequent RecordEvent calls return err (nil restores).
func (s *AccessEventStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Events returns a copy of all recorded events in insertion order.
// Test-only helper.
func (s *AccessEventStore) Events() []store.AccessEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
