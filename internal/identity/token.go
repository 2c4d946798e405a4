package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"libris/internal/platform/middleware"
)

const defaultTokenTTL = 24 * time.Hour

// TokenIssuer signs and validates the portal's HS256 access tokens. It
// implements middleware.JWTValidator for the HTTP layer.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

var _ middleware.JWTValidator = (*TokenIssuer)(nil)

func NewTokenIssuer(signingKey string) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), ttl: defaultTokenTTL}
}

type claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

// Issue mints a token for the user with a fresh per-login session id.
func (t *TokenIssuer) Issue(user User, now time.Time) (string, time.Time, error) {
	expires := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:      string(user.Role),
		SessionID: uuid.NewString(),
	})
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken parses and verifies a bearer token.
func (t *TokenIssuer) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return &middleware.JWTClaims{
		UserID:    c.Subject,
		Role:      c.Role,
		SessionID: c.SessionID,
	}, nil
}
