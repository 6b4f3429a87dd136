package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type UserStore struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]store.UserRecord
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]store.UserRecord),
		byEmail: make(map[string]string),
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *UserStore) CreateUser(_ context.Context, rec store.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(rec.Email)
	if _, taken := s.byEmail[key]; taken {
		return store.ErrDuplicateEmail
	}
	s.byID[rec.ID] = rec
	s.byEmail[key] = rec.ID
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *UserStore) GetUser(_ context.Context, id string) (store.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (store.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *UserStore) ListUsers(_ context.Context, f store.UserFilter) ([]store.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.UserRecord, 0, len(s.order))
	for _, id := range s.order {
		rec := s.byID[id]
		if f.State != "" && rec.State != f.State {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *UserStore) TransitionState(_ context.Context, id string, from, to types.AccountState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.State != from {
		return store.ErrStateConflict
	}
	rec.State = to
	rec.UpdatedAt = at
	rec.DecidedAt = &at
	s.byID[id] = rec
	return nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, id, hash string, at time.Time) error {
	return s.update(id, func(rec *store.UserRecord) {
		rec.PasswordHash = hash
		rec.UpdatedAt = at
	})
}

func (s *UserStore) UpdatePINHash(_ context.Context, id, hash string, at time.Time) error {
	return s.update(id, func(rec *store.UserRecord) {
		rec.PINHash = hash
		rec.UpdatedAt = at
	})
}

func (s *UserStore) update(id string, fn func(*store.UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&rec)
	s.byID[id] = rec
	return nil
}
