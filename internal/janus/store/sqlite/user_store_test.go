package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	sqlitestore "github.com/BrandonDHaskell/Janus/server/internal/janus/store/sqlite"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func newUser(id, email string, created time.Time) store.UserRecord {
	return store.UserRecord{
		ID:           id,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Role:         types.RoleResident,
		State:        types.StatePending,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestUserStore_CreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if err := us.CreateUser(ctx, newUser("u1", "Alice@Example.com ", now)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := us.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", got.Email)
	}
	if got.State != types.StatePending || got.Role != types.RoleResident {
		t.Errorf("unexpected state/role %q/%q", got.State, got.Role)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("expected created %s, got %s", now, got.CreatedAt)
	}
	if got.PINHash != "" || got.DecidedAt != nil {
		t.Errorf("expected no pin and no decision, got %q %v", got.PINHash, got.DecidedAt)
	}

	byEmail, err := us.GetUserByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Errorf("expected u1, got %q", byEmail.ID)
	}

	if _, err := us.GetUser(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_CreateUser_DuplicateEmailCaseInsensitive(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	now := time.Now().UTC()
	if err := us.CreateUser(ctx, newUser("u1", "a@x.com", now)); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := us.CreateUser(ctx, newUser("u2", "A@X.COM", now))
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 user row, got %d", n)
	}
}

func TestUserStore_ListUsers_SignupOrder(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		if err := us.CreateUser(ctx, newUser(id, id+"@x.com", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateUser %s: %v", id, err)
		}
	}
	if err := us.TransitionState(ctx, "a", types.StatePending, types.StateApproved, base.Add(time.Hour)); err != nil {
		t.Fatalf("approve a: %v", err)
	}

	all, err := us.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	pending, err := us.ListUsers(ctx, store.UserFilter{State: types.StatePending})
	if err != nil {
		t.Fatalf("ListUsers pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "c" || pending[1].ID != "b" {
		t.Fatalf("unexpected pending: %v", ids(pending))
	}
}

func TestUserStore_TransitionState(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if err := us.CreateUser(ctx, newUser("u1", "a@x.com", now)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	decided := now.Add(time.Hour)
	if err := us.TransitionState(ctx, "u1", types.StatePending, types.StateApproved, decided); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := us.TransitionState(ctx, "u1", types.StatePending, types.StateApproved, decided)
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict on second approve, got %v", err)
	}
	err = us.TransitionState(ctx, "ghost", types.StatePending, types.StateRejected, decided)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, _ := us.GetUser(ctx, "u1")
	if got.State != types.StateApproved {
		t.Errorf("expected approved, got %q", got.State)
	}
	if got.DecidedAt == nil || !got.DecidedAt.Equal(decided) {
		t.Errorf("expected decided_at %s, got %v", decided, got.DecidedAt)
	}
}

func TestUserStore_TransitionState_ConcurrentSingleWinner(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := us.CreateUser(ctx, newUser("u1", "a@x.com", time.Now().UTC())); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		to := types.StateApproved
		if i%2 == 1 {
			to = types.StateRejected
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- us.TransitionState(ctx, "u1", types.StatePending, to, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrStateConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestUserStore_UpdateHashes(t *testing.T) {
	conn := openTestDB(t)
	us := sqlitestore.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	now := time.Now().UTC()
	if err := us.CreateUser(ctx, newUser("u1", "a@x.com", now)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := us.UpdatePasswordHash(ctx, "u1", "new-hash", now); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	if err := us.UpdatePINHash(ctx, "u1", "pin-hash", now); err != nil {
		t.Fatalf("UpdatePINHash: %v", err)
	}

	got, _ := us.GetUser(ctx, "u1")
	if got.PasswordHash != "new-hash" || got.PINHash != "pin-hash" {
		t.Errorf("unexpected hashes %q/%q", got.PasswordHash, got.PINHash)
	}

	if err := us.UpdatePINHash(ctx, "ghost", "x", now); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func ids(us []store.UserRecord) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.ID
	}
	return out
}
