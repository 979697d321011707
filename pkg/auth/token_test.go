package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry_ReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"exp": exp.Unix()})

	got, err := TokenExpiry(token)

	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiry_StripsBearerPrefix(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"exp": exp.Unix()})

	_, err := TokenExpiry("Bearer " + token)

	assert.NoError(t, err)
}

func TestTokenExpiry_MissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "pilot"})

	_, err := TokenExpiry(token)

	assert.Error(t, err)
}

func TestTokenExpiry_Garbage(t *testing.T) {
	_, err := TokenExpiry("not-a-token")

	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	live := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	dead := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})

	assert.False(t, Expired(live, 0))
	assert.True(t, Expired(dead, 0))

	// Within the safety margin counts as expired
	closeCall := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(30 * time.Second).Unix()})
	assert.True(t, Expired(closeCall, time.Minute))

	// Unparseable tokens fail closed
	assert.True(t, Expired("garbage", 0))
}
