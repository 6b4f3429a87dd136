// Package auth issues and verifies session tokens and gates requests by
// role. It never touches the user store: the role in a verified token is
// the only authority.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// ErrInvalidToken covers bad signatures, foreign algorithms, malformed
// payloads and expiry alike.
var ErrInvalidToken = errors.New("invalid token")

const (
	issuer      = "janus"
	MinKeyBytes = 32
)

// Claims is what a verified token asserts.
type Claims struct {
	UserID string
	Role   types.Role
}

type sessionClaims struct {
	Role types.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 session tokens with a process-wide key. The key
// is fixed for the life of the process.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	return newTokenService(key, ttl, time.Now)
}

// NewTokenServiceWithClock is NewTokenService with an injectable clock,
// used by tests to move past expiry.
func NewTokenServiceWithClock(key []byte, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	return newTokenService(key, ttl, now)
}

func newTokenService(key []byte, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("token key too short (%d < %d bytes)", len(key), MinKeyBytes)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	k := make([]byte, len(key))
	copy(k, key)

	return &TokenService{
		key: k,
		ttl: ttl,
		now: now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// GenerateKey returns a random signing key. Dev only: tokens die with the
// process.
func GenerateKey() ([]byte, error) {
	k := make([]byte, MinKeyBytes)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}
	return k, nil
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for userID with the given role.
func (s *TokenService) Issue(userID string, role types.Role) (string, time.Time, error) {
	if userID == "" || !role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: bad subject %q/%q", userID, role)
	}

	// NumericDate has second precision; report the expiry the token carries.
	now := s.now().UTC().Truncate(time.Second)
	expires := now.Add(s.ttl)

	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (s *TokenService) Verify(token string) (Claims, error) {
	var claims sessionClaims
	tok, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Claims{UserID: claims.Subject, Role: claims.Role}, nil
}
