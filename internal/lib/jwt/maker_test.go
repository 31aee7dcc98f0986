package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker("test_secret_key_1234567890", tokenTTL)

	tests := []struct {
		name    string
		userUID string
		email   string
	}{
		{name: "plain email", userUID: "5d0f0c1e-1111-4a4a-9b9b-000000000001", email: "a@b.com"},
		{name: "plus address", userUID: "5d0f0c1e-1111-4a4a-9b9b-000000000002", email: "user+stack@example.jp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, issued, err := maker.GenerateToken(tt.userUID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userUID, claims.UserUID())
			assert.Equal(t, tt.email, claims.Email)
			assert.Equal(t, issued.ID, claims.ID)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_UniqueIDs(t *testing.T) {
	maker := NewJWTMaker("secret", time.Minute)

	_, c1, err := maker.GenerateToken("uid", "a@b.com")
	require.NoError(t, err)
	_, c2, err := maker.GenerateToken("uid", "a@b.com")
	require.NoError(t, err)

	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestJWTMaker_ParseToken_Invalid(t *testing.T) {
	maker := NewJWTMaker("secret", time.Minute)
	other := NewJWTMaker("other-secret", time.Minute)
	otherToken, _, err := other.GenerateToken("uid", "a@b.com")
	require.NoError(t, err)

	expired := NewJWTMaker("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, _, err := expired.GenerateToken("uid", "a@b.com")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uid"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: otherToken},
		{name: "expired", token: expiredToken},
		{name: "alg none", token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Nil(t, claims)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func TestJWTMaker_EmptySecretRefused(t *testing.T) {
	maker := NewJWTMaker("", time.Hour)

	_, _, err := maker.GenerateToken("uid", "a@b.com")
	assert.ErrorIs(t, err, ErrNotConfigured)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "victim-uid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte{})
	require.NoError(t, err)

	claims, err := maker.ParseToken(forged)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, errors.Is(err, ErrInvalidToken))
}
