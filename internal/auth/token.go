// Package auth extracts the local user's identity from the session token.
// The token is issued and verified by the gateway; the client only reads the
// claims, it never validates the signature.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the gateway's JWT claim set.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// Identity is the authenticated user as known locally.
type Identity struct {
	UserID   string
	Username string
	IsGuest  bool
}

// ParseIdentity decodes the claims of a gateway JWT without verifying it.
// Non-JWT (opaque) tokens return an error; callers treat that as an anonymous
// session rather than a failure.
func ParseIdentity(token string) (Identity, error) {
	parser := jwt.NewParser()
	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		IsGuest:  claims.IsGuest,
	}, nil
}
