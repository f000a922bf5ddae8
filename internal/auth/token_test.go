package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestParseIdentity(t *testing.T) {
	tok := signedToken(t, Claims{UserID: "u-123", Username: "alice", IsGuest: false})

	ident, err := ParseIdentity(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ident.UserID != "u-123" || ident.Username != "alice" || ident.IsGuest {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestParseIdentityGuest(t *testing.T) {
	tok := signedToken(t, Claims{UserID: "g-1", Username: "guest-1", IsGuest: true})

	ident, err := ParseIdentity(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ident.IsGuest {
		t.Fatalf("expected guest identity: %+v", ident)
	}
}

func TestParseIdentityOpaqueToken(t *testing.T) {
	if _, err := ParseIdentity("not-a-jwt"); err == nil {
		t.Fatal("expected error for opaque token")
	}
}
