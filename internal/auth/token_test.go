package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/framez/backend/internal/models"
)

func TestTokenSignerRoundTrip(t *testing.T) {
	signer, err := NewTokenSigner("secret")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	user := models.SessionUser{ID: "user-42", Email: "grace@example.com", FullName: "Grace"}

	token, err := signer.Sign(user, now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := signer.Verify(token, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != user {
		t.Fatalf("expected %+v got %+v", user, got)
	}

	if _, err := signer.Verify(token, now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestTokenSignerRejectsForeignSecret(t *testing.T) {
	issuer, _ := NewTokenSigner("one")
	verifier, _ := NewTokenSigner("two")
	now := time.Now()

	token, err := issuer.Sign(models.SessionUser{ID: "user-1"}, now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := verifier.Verify(token, now); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if _, err := verifier.Verify("", now); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected empty token rejection, got %v", err)
	}
}

func TestNewTokenSignerRequiresSecret(t *testing.T) {
	if _, err := NewTokenSigner(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
