package auth

import (
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func TestVerifyAcceptsIDOrSubject(t *testing.T) {
	v := NewJWTVerifier(secret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	uid, err := v.Verify(sign(t, secret, Claims{ID: "u-1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-1"), uid)

	uid, err = v.Verify("Bearer " + sign(t, secret, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2", ExpiresAt: exp}}))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-2"), uid)
}

func TestVerifyRejects(t *testing.T) {
	v := NewJWTVerifier(secret)
	past := jwt.NewNumericDate(time.Now().Add(-time.Minute))

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong secret": sign(t, "other", Claims{ID: "u-1"}),
		"expired":      sign(t, secret, Claims{ID: "u-1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: past}}),
		"no user":      sign(t, secret, Claims{}),
		"alg none":     unsigned,
		"garbage":      "not.a.token",
		"empty":        "",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	_, err := NewJWTVerifier("").Verify(sign(t, secret, Claims{ID: "u-1"}))
	assert.ErrorIs(t, err, ErrAuthDisabled)
}
