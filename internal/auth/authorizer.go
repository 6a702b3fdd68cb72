package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
)

// Authorizer verifies that the invoking context was authorized by a
// specific principal. It is a synchronous precondition: failure aborts
// the calling operation.
type Authorizer interface {
	RequireAuthorization(ctx context.Context, principal uuid.UUID) error
}

// ContextAuthorizer trusts the principal the middleware stamped into
// the request context after verifying the bearer token.
type ContextAuthorizer struct{}

func (ContextAuthorizer) RequireAuthorization(ctx context.Context, principal uuid.UUID) error {
	got, ok := PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no authenticated principal: %w", policy.ErrUnauthorized)
	}
	if got != principal {
		return fmt.Errorf("principal %s required: %w", principal, policy.ErrUnauthorized)
	}
	return nil
}
