package server

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer(t *testing.T) {
	user := models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Provider: models.ProviderGoogle}

	t.Run("round trip", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("secret", time.Hour)
		token, err := issuer.Issue(user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := issuer.Verify(token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *got != user {
			t.Errorf("got %+v, want %+v", got, user)
		}
	})

	t.Run("empty secret", func(t *testing.T) {
		if _, err := NewTokenIssuer("", time.Hour); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("secret", time.Minute)
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _ := issuer.Issue(user)
		issuer.now = time.Now

		if _, err := issuer.Verify(token); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("foreign secret", func(t *testing.T) {
		a, _ := NewTokenIssuer("secret-a", time.Hour)
		b, _ := NewTokenIssuer("secret-b", time.Hour)
		token, _ := a.Issue(user)

		if _, err := b.Verify(token); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("rejects other algorithms", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("secret", time.Hour)
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: tokenIssuer}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}

		if _, err := issuer.Verify(token); err == nil {
			t.Error("expected HS512 token to be rejected")
		}
	})

	t.Run("requires subject", func(t *testing.T) {
		issuer, _ := NewTokenIssuer("secret", time.Hour)
		token, _ := issuer.Issue(models.User{Name: "anonymous"})
		if _, err := issuer.Verify(token); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
	})
}
