package auth

import (
	"errors"
	"time" // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library

	"predictpro/internal/domain"
)

// Token lifetimes. Sessions last a day; reset links a single hour. There is no
// server-side revocation list: a leaked token stays valid until expiry, so
// callers needing instant revocation must shorten these.
const (
	SessionTTL = 24 * time.Hour
	ResetTTL   = time.Hour
)

// Claims carried by every session token.
type Claims struct {
	UserID               uint        `json:"user_id"` // Custom claim for user ID
	Role                 domain.Role `json:"role"`
	jwt.RegisteredClaims             // Standard JWT claims
}

// Manager signs and validates bearer tokens binding a request to a user.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Issue creates a session token for the given user.
func (m *Manager) Issue(userID uint, role domain.Role) (string, error) {
	return m.sign(userID, role, SessionTTL)
}

// IssueReset creates a short-lived token for the password-reset flow.
func (m *Manager) IssueReset(userID uint, role domain.Role) (string, error) {
	return m.sign(userID, role, ResetTTL)
}

func (m *Manager) sign(userID uint, role domain.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString(m.secret)                        // Sign the token with the secret
}

// Validate parses a token string and returns its claims. Malformed, expired
// and badly signed tokens all map to ErrUnauthenticated.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, domain.ErrUnauthenticated
}
