package auth

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// WithPrincipal stamps the authenticated principal into the context.
// The HTTP middleware does this after verifying the bearer token.
func WithPrincipal(ctx context.Context, principal uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (uuid.UUID, bool) {
	principal, ok := ctx.Value(principalKey{}).(uuid.UUID)
	return principal, ok
}
