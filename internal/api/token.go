package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenClaims is the subset of the access token the client displays.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectToken decodes the access token's claims without verifying the
// signature; the backend is the only party that can verify it.
func InspectToken(token string) (TokenClaims, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, errors.Wrap(err, "decode access token")
	}
	out := TokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TokenExpired reports whether a token's exp claim lies before now. Tokens
// without exp, or that cannot be decoded, are left for the backend to judge.
func TokenExpired(token string, now time.Time) bool {
	claims, err := InspectToken(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(claims.ExpiresAt)
}
