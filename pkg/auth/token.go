package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "starmap/pkg/errors"
)

// TokenExpiry extracts the expiry claim from a bearer token without
// verifying its signature. The client only needs the deadline to know
// when to reconnect with fresh credentials; verification is the
// server's job.
func TokenExpiry(token string) (time.Time, error) {
	token = strings.TrimPrefix(token, "Bearer ")

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, pkgerrors.NewValidationError("malformed bearer token").WithCause(err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, pkgerrors.NewValidationError("bearer token has no expiry claim")
	}

	return exp.Time, nil
}

// Expired reports whether the token's expiry claim has passed, with a
// safety margin. Tokens without a parseable expiry count as expired.
func Expired(token string, margin time.Duration) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return time.Now().Add(margin).After(exp)
}
