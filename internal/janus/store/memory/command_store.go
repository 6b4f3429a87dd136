package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type CommandStore struct {
	mu       sync.Mutex
	commands map[string]store.LockCommandRecord
	inflight map[string]string // device id -> pending command id
	latest   map[string]string // device id -> last command id
}

func NewCommandStore() *CommandStore {
	return &CommandStore{
		commands: make(map[string]store.LockCommandRecord),
		inflight: make(map[string]string),
		latest:   make(map[string]string),
	}
}

func (s *CommandStore) Acquire(_ context.Context, rec store.LockCommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.inflight[rec.DeviceID]; ok {
		cur := s.commands[id]
		if !cur.Deadline.Before(rec.DispatchedAt) {
			return store.ErrSlotBusy
		}
		at := rec.DispatchedAt
		cur.State = types.CommandTimedOut
		cur.ResolvedAt = &at
		cur.Detail = "reclaimed after deadline"
		s.commands[id] = cur
		delete(s.inflight, rec.DeviceID)
	}

	rec.State = types.CommandPending
	s.commands[rec.ID] = rec
	s.inflight[rec.DeviceID] = rec.ID
	s.latest[rec.DeviceID] = rec.ID
	return nil
}

func (s *CommandStore) Resolve(_ context.Context, id string, state types.CommandState, detail string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commands[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.State != types.CommandPending {
		return store.ErrStateConflict
	}
	rec.State = state
	rec.Detail = detail
	rec.ResolvedAt = &at
	s.commands[id] = rec
	if s.inflight[rec.DeviceID] == id {
		delete(s.inflight, rec.DeviceID)
	}
	return nil
}

func (s *CommandStore) Latest(_ context.Context, deviceID string) (store.LockCommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.latest[deviceID]
	if !ok {
		return store.LockCommandRecord{}, store.ErrNotFound
	}
	return s.commands[id], nil
}

func (s *CommandStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.commands {
		if rec.State == types.CommandPending || !rec.DispatchedAt.Before(cutoff) {
			continue
		}
		if s.latest[rec.DeviceID] == id {
			continue
		}
		delete(s.commands, id)
		n++
	}
	return n, nil
}
