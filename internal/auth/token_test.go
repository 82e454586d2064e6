package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewTokenManager("0123456789abcdef", time.Hour)

	token, err := m.Issue("crawfish-importer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "crawfish-importer" || claims.Scope != ScopeIngest || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager("0123456789abcdef", time.Hour)
	valid, _ := m.Issue("x")

	expired := NewTokenManager("0123456789abcdef", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Issue("x")

	other, _ := NewTokenManager("fedcba9876543210", time.Hour).Issue("x")

	wrongScope, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: "read",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("0123456789abcdef"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"tampered", valid + "x", ErrInvalidToken},
		{"expired", old, ErrInvalidToken},
		{"other secret", other, ErrInvalidToken},
		{"wrong scope", wrongScope, ErrInsufficientScope},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Verify(tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNoSecret(t *testing.T) {
	m := NewTokenManager("", 0)
	if _, err := m.Issue("x"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, err := m.Verify("x"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
