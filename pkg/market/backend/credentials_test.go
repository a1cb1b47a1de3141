package backend

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCredentialProvider(t *testing.T) {
	provider := NewStaticCredentialProvider("token-value")
	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-value", token)

	_, err = NewStaticCredentialProvider("").Token(context.Background())
	assert.Equal(t, ErrNoCredential, err)
}

func signedToken(t *testing.T, expiry time.Time) string {
	claims := jwt.MapClaims{
		"sub": "wallet-address",
	}
	if !expiry.IsZero() {
		claims["exp"] = expiry.Unix()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestJWTCredentialProvider(t *testing.T) {
	valid := signedToken(t, time.Now().Add(time.Hour))
	provider := NewJWTCredentialProvider(valid)

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, token)
}

func TestJWTCredentialProvider_Expired(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Minute))
	provider := NewJWTCredentialProvider(expired)

	_, err := provider.Token(context.Background())
	assert.Equal(t, ErrCredentialExpired, err)
}

func TestJWTCredentialProvider_NoExpiry(t *testing.T) {
	provider := NewJWTCredentialProvider(signedToken(t, time.Time{}))

	_, err := provider.Token(context.Background())
	assert.NoError(t, err)
}

func TestJWTCredentialProvider_Malformed(t *testing.T) {
	_, err := NewJWTCredentialProvider("not-a-jwt").Token(context.Background())
	assert.Error(t, err)

	_, err = NewJWTCredentialProvider("").Token(context.Background())
	assert.Equal(t, ErrNoCredential, err)
}
