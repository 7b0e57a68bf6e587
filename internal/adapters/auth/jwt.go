package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthDisabled = errors.New("auth secret not configured")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims accepts both the account service's "id" claim and a standard subject.
type Claims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() domain.UserID {
	if id := strings.TrimSpace(c.ID); id != "" {
		return domain.UserID(id)
	}
	return domain.UserID(strings.TrimSpace(c.Subject))
}

// JWTVerifier checks HMAC-signed tokens issued by the account service.
type JWTVerifier struct {
	secret []byte
}

var _ core.TokenVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (domain.UserID, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrAuthDisabled
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	uid := claims.UserID()
	if uid == "" {
		return "", ErrInvalidToken
	}
	return uid, nil
}
