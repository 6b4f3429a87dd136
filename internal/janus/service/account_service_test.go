package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func signup(t *testing.T, e *env, name, email string) string {
	t.Helper()
	u, err := e.accounts.Signup(context.Background(), types.SignupRequest{
		Name: name, Email: email, Password: testPassword,
	})
	require.NoError(t, err)
	return u.ID
}

func TestSignup_CreatesPendingResident(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.accounts.Signup(ctx, types.SignupRequest{
		Name: "  Alice ", Email: " Alice@Example.COM ", Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, types.RoleResident, u.Role)
	assert.Equal(t, types.StatePending, u.State)
	assert.NotEqual(t, testPassword, u.PasswordHash)
	assert.Equal(t, []string{"alice@example.com"}, e.notifier.signups)
}

func TestSignup_DuplicateEmailIgnoresCase(t *testing.T) {
	e := newEnv(t)
	signup(t, e, "Alice", "alice@example.com")

	_, err := e.accounts.Signup(context.Background(), types.SignupRequest{
		Name: "Other", Email: "ALICE@example.com", Password: testPassword,
	})
	assert.ErrorIs(t, err, service.ErrDuplicateEmail)
}

func TestSignup_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.accounts.Signup(ctx, types.SignupRequest{Name: "A", Email: "a@example.com", Password: "  abc12  "})
	assert.ErrorIs(t, err, service.ErrWeakCredential)

	_, err = e.accounts.Signup(ctx, types.SignupRequest{Name: " ", Email: "a@example.com", Password: testPassword})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestSignup_NoticeFailureDoesNotFail(t *testing.T) {
	e := newEnv(t)
	e.notifier.err = errors.New("smtp down")

	_, err := e.accounts.Signup(context.Background(), types.SignupRequest{
		Name: "Alice", Email: "alice@example.com", Password: testPassword,
	})
	assert.NoError(t, err)
}

func TestLogin_States(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	id := signup(t, e, "Alice", "alice@example.com")

	_, err := e.accounts.Login(ctx, "alice@example.com", testPassword)
	assert.ErrorIs(t, err, service.ErrNotApproved, "pending")

	_, err = e.accounts.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials, "wrong password on pending account")

	_, err = e.accounts.Login(ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials, "unknown email")

	require.NoError(t, e.accounts.Accept(ctx, admin, id))

	sess, err := e.accounts.Login(ctx, "ALICE@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, id, sess.User.ID)

	claims, err := e.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, types.RoleResident, claims.Role)
}

func TestReject_RetainsUserAndBlocksLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	id := signup(t, e, "Bob", "bob@example.com")

	require.NoError(t, e.accounts.Reject(ctx, admin, id))

	u, err := e.accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StateRejected, u.State)
	require.NotNil(t, u.DecidedAt)

	_, err = e.accounts.Login(ctx, "bob@example.com", testPassword)
	assert.ErrorIs(t, err, service.ErrNotApproved)

	approved, ok := e.notifier.decisions["bob@example.com"]
	assert.True(t, ok)
	assert.False(t, approved)
}

func TestDecide_OnlyFromPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	id := signup(t, e, "Alice", "alice@example.com")

	require.NoError(t, e.accounts.Accept(ctx, admin, id))
	assert.ErrorIs(t, e.accounts.Accept(ctx, admin, id), service.ErrNotFound)
	assert.ErrorIs(t, e.accounts.Reject(ctx, admin, id), service.ErrNotFound)
	assert.ErrorIs(t, e.accounts.Accept(ctx, admin, "missing"), service.ErrNotFound)

	u, err := e.accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StateApproved, u.State)
}

func TestDecide_RequiresAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, resident := e.resident(t, "carol")
	id := signup(t, e, "Alice", "alice@example.com")

	assert.ErrorIs(t, e.accounts.Accept(ctx, resident, id), service.ErrForbidden)
	assert.ErrorIs(t, e.accounts.Reject(ctx, resident, id), auth.ErrForbidden)

	_, err := e.accounts.ListPending(ctx, resident)
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = e.accounts.ListUsers(ctx, resident)
	assert.ErrorIs(t, err, service.ErrForbidden)

	u, err := e.accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatePending, u.State, "no mutation on a forbidden call")
}

func TestDecide_ConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	id := signup(t, e, "Alice", "alice@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = e.accounts.Accept(ctx, admin, id)
			} else {
				errs[i] = e.accounts.Reject(ctx, admin, id)
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, service.ErrNotFound)
	}
	assert.Equal(t, 1, wins)
}

func TestListPending_SignupOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	a := signup(t, e, "A", "a@example.com")
	e.clock.Advance(1)
	b := signup(t, e, "B", "b@example.com")

	pending, err := e.accounts.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, b, pending[1].ID)

	all, err := e.accounts.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdatePassword_SelfOrAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	alice, alicePrincipal := e.resident(t, "alice")
	bob, _ := e.resident(t, "bob")

	assert.ErrorIs(t, e.accounts.UpdatePassword(ctx, alicePrincipal, bob.ID, "new-password"), service.ErrForbidden)
	assert.ErrorIs(t, e.accounts.UpdatePassword(ctx, alicePrincipal, alice.ID, "short"), service.ErrWeakCredential)

	require.NoError(t, e.accounts.UpdatePassword(ctx, alicePrincipal, alice.ID, "new-password"))
	assert.NoError(t, e.accounts.VerifyPassword(ctx, alice.ID, "new-password"))
	assert.ErrorIs(t, e.accounts.VerifyPassword(ctx, alice.ID, testPassword), service.ErrInvalidCredentials)

	require.NoError(t, e.accounts.UpdatePassword(ctx, admin, bob.ID, "admin-set-1"))
	_, err := e.accounts.Login(ctx, bob.Email, "admin-set-1")
	assert.NoError(t, err)

	assert.ErrorIs(t, e.accounts.UpdatePassword(ctx, admin, "missing", "whatever1"), service.ErrNotFound)
	assert.ErrorIs(t, e.accounts.VerifyPassword(ctx, "missing", "whatever1"), service.ErrInvalidCredentials)
}

func TestUpdatePIN_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, p := e.resident(t, "alice")

	for _, bad := range []string{"", "123", "12345678901", "12a4"} {
		assert.ErrorIs(t, e.accounts.UpdatePIN(ctx, p, "", bad), service.ErrInvalidPIN, bad)
	}

	// No PIN yet: oldPin is ignored.
	require.NoError(t, e.accounts.UpdatePIN(ctx, p, "whatever", "1234"))

	assert.ErrorIs(t, e.accounts.UpdatePIN(ctx, p, "0000", "5678"), service.ErrPINMismatch)
	assert.ErrorIs(t, e.accounts.UpdatePIN(ctx, p, "1234", "1234"), service.ErrSamePIN)
	require.NoError(t, e.accounts.UpdatePIN(ctx, p, "1234", "5678"))

	u, ok, err := e.accounts.MatchPIN(ctx, "5678")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p.UserID, u.ID)

	_, ok, err = e.accounts.MatchPIN(ctx, "1234")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetPIN_AdminOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	bob, bobPrincipal := e.resident(t, "bob")
	_, alice := e.resident(t, "alice")

	assert.ErrorIs(t, e.accounts.SetPIN(ctx, alice, bob.ID, "4321"), service.ErrForbidden)
	assert.ErrorIs(t, e.accounts.SetPIN(ctx, bobPrincipal, bob.ID, "4321"), service.ErrForbidden)
	require.NoError(t, e.accounts.SetPIN(ctx, admin, bob.ID, "4321"))
	assert.ErrorIs(t, e.accounts.SetPIN(ctx, admin, "missing", "4321"), service.ErrNotFound)

	u, ok, err := e.accounts.MatchPIN(ctx, "4321")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob.ID, u.ID)
}

func TestMatchPIN_IgnoresUnapproved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	id := signup(t, e, "Pat", "pat@example.com")
	require.NoError(t, e.accounts.SetPIN(ctx, admin, id, "2468"))

	_, ok, err := e.accounts.MatchPIN(ctx, "2468")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.accounts.EnsureAdmin(ctx, "Root", "Root@Example.com", "bootstrap-pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.accounts.EnsureAdmin(ctx, "Root", "root@example.com", "other-pw-1")
	require.NoError(t, err)
	assert.False(t, created)

	sess, err := e.accounts.Login(ctx, "root@example.com", "bootstrap-pw")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, sess.User.Role)

	_, err = e.accounts.EnsureAdmin(ctx, "Root", "new@example.com", "weak")
	assert.ErrorIs(t, err, service.ErrWeakCredential)
}
