package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims the backend puts in its tokens, plus
// the user id it uses.
type Claims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// Inspect reads a token's claims without verifying its signature. The
// signing secret lives on the backend; the client only looks at expiry.
// ok is false when the token is not a readable JWT.
func Inspect(token string) (claims *Claims, ok bool) {
	claims = &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Expired reports whether token is a JWT whose exp claim is at or before
// now. Tokens that cannot be read, or carry no exp, are not considered
// expired; the backend decides for those.
func Expired(token string, now time.Time) bool {
	claims, ok := Inspect(token)
	if !ok || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
