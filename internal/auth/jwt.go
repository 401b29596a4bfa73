// Package auth issues and validates the bearer tokens of the ticket API.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. Tokens expire after ttl.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// claims carries the role for logging only; authorization always reloads
// the principal so a role change takes effect on the next request.
type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Issue creates a signed token for the principal.
func (m *TokenManager) Issue(p *models.Principal) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: p.Role.String(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Validate parses the token and returns the principal id it was issued for.
func (m *TokenManager) Validate(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errors.Wrap(models.ErrUnauthorized, "token is empty")
	}
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return uuid.Nil, errors.Wrap(models.ErrUnauthorized, err.Error())
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.Wrap(models.ErrUnauthorized, "invalid token claims")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errors.Wrap(models.ErrUnauthorized, "invalid subject")
	}
	return id, nil
}
