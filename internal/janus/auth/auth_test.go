package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTokens(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	ts, err := NewTokenServiceWithClock(testKey, time.Hour, now)
	require.NoError(t, err)
	return ts
}

func TestTokenService_IssueVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := newTestTokens(t, func() time.Time { return now })

	tok, exp, err := ts.Issue("user-1", types.RoleResident)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), exp)

	claims, err := ts.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, types.RoleResident, claims.Role)
}

func TestTokenService_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	ts := newTestTokens(t, func() time.Time { return clock })

	tok, _, err := ts.Issue("user-1", types.RoleAdmin)
	require.NoError(t, err)

	clock = now.Add(time.Hour + time.Second)
	_, err = ts.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsTampering(t *testing.T) {
	ts := newTestTokens(t, time.Now)
	tok, _, err := ts.Issue("user-1", types.RoleResident)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	// Swap in an admin payload signed by somebody else.
	other, err := NewTokenService([]byte(strings.Repeat("x", 32)), time.Hour)
	require.NoError(t, err)
	forged, _, err := other.Issue("user-1", types.RoleAdmin)
	require.NoError(t, err)
	fparts := strings.Split(forged, ".")

	_, err = ts.Verify(parts[0] + "." + fparts[1] + "." + parts[2])
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = ts.Verify(forged)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = ts.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsNoneAlgAndUnknownRole(t *testing.T) {
	ts := newTestTokens(t, time.Now)
	now := time.Now()

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		Role: types.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	weird := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err = weird.SignedString(testKey)
	require.NoError(t, err)
	_, err = ts.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_ShortKey(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	require.Error(t, err)

	k, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, k, MinKeyBytes)
}

func TestGuard_Authorize(t *testing.T) {
	ts := newTestTokens(t, time.Now)
	g := NewGuard(ts)

	resTok, _, err := ts.Issue("res-1", types.RoleResident)
	require.NoError(t, err)
	admTok, _, err := ts.Issue("adm-1", types.RoleAdmin)
	require.NoError(t, err)

	cases := []struct {
		name     string
		header   string
		required types.Role
		want     error
	}{
		{"missing header", "", types.RoleResident, ErrUnauthenticated},
		{"wrong scheme", "Basic " + resTok, types.RoleResident, ErrUnauthenticated},
		{"garbage token", "Bearer abc", types.RoleResident, ErrUnauthenticated},
		{"resident ok", "Bearer " + resTok, types.RoleResident, nil},
		{"lowercase scheme", "bearer " + resTok, types.RoleResident, nil},
		{"resident on admin route", "Bearer " + resTok, types.RoleAdmin, ErrForbidden},
		{"admin on admin route", "Bearer " + admTok, types.RoleAdmin, nil},
		{"admin on resident route", "Bearer " + admTok, types.RoleResident, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authorize(tc.header, tc.required)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestPrincipal_CanActFor(t *testing.T) {
	res := Principal{UserID: "a", Role: types.RoleResident}
	adm := Principal{UserID: "z", Role: types.RoleAdmin}

	require.True(t, res.CanActFor("a"))
	require.False(t, res.CanActFor("b"))
	require.True(t, adm.CanActFor("b"))
	require.False(t, Principal{}.CanActFor(""))
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	require.True(t, h.Compare(hash, "secret1"))
	require.False(t, h.Compare(hash, "secret2"))
	require.False(t, h.Compare("", "secret1"))

	h.CompareDummy("anything")
}
