package auth

import (
	"errors"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Principal is the caller as established by a verified token.
type Principal struct {
	UserID string
	Role   types.Role
}

func (p Principal) IsAdmin() bool { return p.Role == types.RoleAdmin }

// Satisfies reports whether p holds at least the required role. Admin
// satisfies resident.
func (p Principal) Satisfies(required types.Role) bool {
	switch required {
	case types.RoleAdmin:
		return p.Role == types.RoleAdmin
	case types.RoleResident:
		return p.Role == types.RoleResident || p.Role == types.RoleAdmin
	default:
		return false
	}
}

// CanActFor: self, or any admin.
func (p Principal) CanActFor(userID string) bool {
	return p.IsAdmin() || (p.UserID != "" && p.UserID == userID)
}

type Verifier interface {
	Verify(token string) (Claims, error)
}

// Guard turns an Authorization header into a Principal. It is a pure
// check; callers run it before touching state.
type Guard struct {
	tokens Verifier
}

func NewGuard(v Verifier) *Guard {
	return &Guard{tokens: v}
}

func (g *Guard) Authorize(authHeader string, required types.Role) (Principal, error) {
	raw, ok := BearerToken(authHeader)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	p := Principal{UserID: claims.UserID, Role: claims.Role}
	if !p.Satisfies(required) {
		return p, ErrForbidden
	}
	return p, nil
}

// BearerToken extracts the credential from "Bearer <token>". The scheme
// is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
