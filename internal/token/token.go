// Package token issues and verifies HS256 access tokens bound to a server-side session.
package token

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid"`
}

// Manager signs and parses access tokens.
type Manager struct {
	key    []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewManager constructs a Manager; ttl is the access token lifetime.
func NewManager(key []byte, ttl time.Duration) *Manager {
	return &Manager{key: key, ttl: ttl, leeway: 30 * time.Second, now: time.Now}
}

// TTL returns the access token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a signed HS256 JWT for the given subject and session.
func (m *Manager) Issue(userID, sessionID uuid.UUID, email string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:     email,
		SessionID: sessionID.String(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.key)
	return signed, exp, err
}

// Parsed is the verified content of an access token.
type Parsed struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Parse verifies signature, method and time claims, and extracts ids.
func (m *Manager) Parse(raw string) (Parsed, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	}, jwt.WithLeeway(m.leeway), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Parsed{}, errors.New("invalid token")
	}

	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Parsed{}, errors.New("bad subject")
	}
	sid, err := uuid.FromString(claims.SessionID)
	if err != nil {
		return Parsed{}, errors.New("bad session id")
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return Parsed{UserID: uid, SessionID: sid, Email: claims.Email, ExpiresAt: exp}, nil
}
