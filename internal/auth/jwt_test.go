package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	principal := uuid.New()

	token, err := auth.GenerateToken(secret, principal, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Principal != principal {
		t.Errorf("principal = %s, want %s", claims.Principal, principal)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := auth.GenerateToken(secret, uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := auth.ParseToken("other-secret", token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := auth.GenerateToken(secret, uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := auth.ParseToken(secret, token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestContextAuthorizer(t *testing.T) {
	principal := uuid.New()
	authz := auth.ContextAuthorizer{}

	ctx := auth.WithPrincipal(context.Background(), principal)
	if err := authz.RequireAuthorization(ctx, principal); err != nil {
		t.Errorf("matching principal rejected: %v", err)
	}
	if err := authz.RequireAuthorization(ctx, uuid.New()); !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("mismatched principal err = %v, want ErrUnauthorized", err)
	}
	if err := authz.RequireAuthorization(context.Background(), principal); !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("missing principal err = %v, want ErrUnauthorized", err)
	}
}
