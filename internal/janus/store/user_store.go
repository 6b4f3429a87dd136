package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// UserRecord is the persisted identity of a resident or admin. Email is
// stored normalized (trimmed, lower-case).
type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         types.Role
	State        types.AccountState
	PINHash      string // empty when no PIN was set
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DecidedAt    *time.Time
}

// UserFilter narrows ListUsers. The zero value lists everyone.
type UserFilter struct {
	State types.AccountState
}

type UserStore interface {
	// CreateUser fails with ErrDuplicateEmail when the email is taken,
	// compared case-insensitively.
	CreateUser(ctx context.Context, rec UserRecord) error
	GetUser(ctx context.Context, id string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	// ListUsers returns users in signup order.
	ListUsers(ctx context.Context, f UserFilter) ([]UserRecord, error)
	// TransitionState moves a user from one state to another atomically.
	// ErrNotFound if the user does not exist, ErrStateConflict if it is
	// not currently in from.
	TransitionState(ctx context.Context, id string, from, to types.AccountState, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
	UpdatePINHash(ctx context.Context, id, hash string, at time.Time) error
}
