package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/notify"
)

const (
	minPasswordLen = 6
	maxSecretBytes = 72 // bcrypt ignores anything past this

	minPINLen = 4
	maxPINLen = 10
)

type TokenIssuer interface {
	Issue(userID string, role types.Role) (string, time.Time, error)
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      store.UserRecord
}

type AccountService struct {
	users    store.UserStore
	tokens   TokenIssuer
	hasher   *auth.Hasher
	notifier notify.Notifier
	logger   *slog.Logger
	now      Clock
}

type AccountConfig struct {
	Users    store.UserStore
	Tokens   TokenIssuer
	Hasher   *auth.Hasher
	Notifier notify.Notifier // nil = no notices
	Logger   *slog.Logger
	Now      Clock
}

func NewAccountService(cfg AccountConfig) *AccountService {
	n := cfg.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	return &AccountService{
		users:    cfg.Users,
		tokens:   cfg.Tokens,
		hasher:   cfg.Hasher,
		notifier: n,
		logger:   cfg.Logger,
		now:      cfg.Now.orDefault(),
	}
}

// Signup registers a pending resident. Admins are notified; a failed
// notice does not fail the signup.
func (s *AccountService) Signup(ctx context.Context, req types.SignupRequest) (store.UserRecord, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" {
		return store.UserRecord{}, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	if err := checkPassword(req.Password); err != nil {
		return store.UserRecord{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return store.UserRecord{}, err
	}

	now := s.now().UTC()
	rec := store.UserRecord{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleResident,
		State:        types.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return store.UserRecord{}, ErrDuplicateEmail
		}
		return store.UserRecord{}, err
	}

	s.logger.Info("account: signup", "user_id", rec.ID)
	if err := s.notifier.SignupReceived(ctx, rec.Name, rec.Email); err != nil {
		s.logger.Warn("account: signup notice failed", "user_id", rec.ID, "err", err)
	}
	return rec, nil
}

// Login checks credentials before account state, so a wrong password on
// a pending account reads the same as on an unknown one.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.CompareDummy(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if u.State != types.StateApproved {
		return Session{}, ErrNotApproved
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// VerifyPassword re-checks a user's password without issuing a token.
func (s *AccountService) VerifyPassword(ctx context.Context, userID, password string) error {
	u, err := s.users.GetUser(ctx, strings.TrimSpace(userID))
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.CompareDummy(password)
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, p auth.Principal, userID, newPassword string) error {
	userID = strings.TrimSpace(userID)
	if !p.CanActFor(userID) {
		return ErrForbidden
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return mapNotFound(s.users.UpdatePasswordHash(ctx, userID, hash, s.now().UTC()))
}

// UpdatePIN changes the caller's own PIN. The old PIN is checked only
// when one is set.
func (s *AccountService) UpdatePIN(ctx context.Context, p auth.Principal, oldPIN, newPIN string) error {
	if !p.Satisfies(types.RoleResident) {
		return ErrForbidden
	}
	if err := checkPIN(newPIN); err != nil {
		return err
	}

	u, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return mapNotFound(err)
	}
	if u.PINHash != "" {
		if !s.hasher.Compare(u.PINHash, oldPIN) {
			return ErrPINMismatch
		}
		if oldPIN == newPIN {
			return ErrSamePIN
		}
	}
	return s.setPIN(ctx, u.ID, newPIN)
}

// SetPIN lets an admin set any user's PIN without knowing the old one.
func (s *AccountService) SetPIN(ctx context.Context, p auth.Principal, userID, newPIN string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if err := checkPIN(newPIN); err != nil {
		return err
	}
	return s.setPIN(ctx, strings.TrimSpace(userID), newPIN)
}

func (s *AccountService) setPIN(ctx context.Context, userID, pin string) error {
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return err
	}
	return mapNotFound(s.users.UpdatePINHash(ctx, userID, hash, s.now().UTC()))
}

func (s *AccountService) Accept(ctx context.Context, p auth.Principal, userID string) error {
	return s.decide(ctx, p, userID, types.StateApproved)
}

func (s *AccountService) Reject(ctx context.Context, p auth.Principal, userID string) error {
	return s.decide(ctx, p, userID, types.StateRejected)
}

// decide resolves a pending signup. A user that is not pending, including
// one already decided, is ErrNotFound from the caller's view.
func (s *AccountService) decide(ctx context.Context, p auth.Principal, userID string, to types.AccountState) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	userID = strings.TrimSpace(userID)

	err := s.users.TransitionState(ctx, userID, types.StatePending, to, s.now().UTC())
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrStateConflict) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	s.logger.Info("account: decided", "user_id", userID, "state", to, "by", p.UserID)

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("account: reload after decision failed", "user_id", userID, "err", err)
		return nil
	}
	if err := s.notifier.Decision(ctx, u.Name, u.Email, to == types.StateApproved); err != nil {
		s.logger.Warn("account: decision notice failed", "user_id", userID, "err", err)
	}
	return nil
}

func (s *AccountService) ListPending(ctx context.Context, p auth.Principal) ([]store.UserRecord, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.users.ListUsers(ctx, store.UserFilter{State: types.StatePending})
}

func (s *AccountService) ListUsers(ctx context.Context, p auth.Principal) ([]store.UserRecord, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.users.ListUsers(ctx, store.UserFilter{})
}

func (s *AccountService) Get(ctx context.Context, userID string) (store.UserRecord, error) {
	u, err := s.users.GetUser(ctx, userID)
	return u, mapNotFound(err)
}

// MatchPIN finds the approved user whose PIN is pin. When two users share
// a PIN the earliest signup wins.
func (s *AccountService) MatchPIN(ctx context.Context, pin string) (store.UserRecord, bool, error) {
	if checkPIN(pin) != nil {
		return store.UserRecord{}, false, nil
	}
	users, err := s.users.ListUsers(ctx, store.UserFilter{State: types.StateApproved})
	if err != nil {
		return store.UserRecord{}, false, err
	}
	for _, u := range users {
		if u.PINHash != "" && s.hasher.Compare(u.PINHash, pin) {
			return u, true, nil
		}
	}
	return store.UserRecord{}, false, nil
}

// EnsureAdmin creates an approved admin unless the email is already
// registered. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if existing.Role != types.RoleAdmin || existing.State != types.StateApproved {
			s.logger.Warn("account: bootstrap email belongs to a non-admin account",
				"user_id", existing.ID, "role", existing.Role, "state", existing.State)
		}
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err := checkPassword(password); err != nil {
		return false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	rec := store.UserRecord{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleAdmin,
		State:        types.StateApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
		DecidedAt:    &now,
	}
	if err := s.users.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("account: bootstrap admin created", "user_id", rec.ID)
	return true, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func checkPassword(pw string) error {
	if utf8.RuneCountInString(strings.TrimSpace(pw)) < minPasswordLen {
		return ErrWeakCredential
	}
	if len(pw) > maxSecretBytes {
		return fmt.Errorf("%w: password longer than %d bytes", ErrValidation, maxSecretBytes)
	}
	return nil
}

func checkPIN(pin string) error {
	if len(pin) < minPINLen || len(pin) > maxPINLen {
		return ErrInvalidPIN
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
