package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

// Settings holds the immutable service configuration: administrator
// principal, backing asset, and treasury principal. Written exactly
// once at initialization.
type Settings struct {
	kv store.Store
}

func NewSettings(kv store.Store) *Settings {
	return &Settings{kv: kv}
}

// Initialized reports whether the administrator has been configured.
func (s *Settings) Initialized(ctx context.Context) (bool, error) {
	return s.kv.Has(ctx, keyAdmin)
}

// Initialize writes the configuration keys. The caller is responsible
// for the once-only check.
func (s *Settings) Initialize(ctx context.Context, admin uuid.UUID, asset string, treasury uuid.UUID) error {
	if err := s.kv.Set(ctx, keyAdmin, []byte(admin.String())); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, keyAsset, []byte(asset)); err != nil {
		return err
	}
	return s.kv.Set(ctx, keyTreasury, []byte(treasury.String()))
}

// Admin returns the administrator principal.
func (s *Settings) Admin(ctx context.Context) (uuid.UUID, error) {
	return s.principal(ctx, keyAdmin, "admin")
}

// Treasury returns the custodial treasury principal.
func (s *Settings) Treasury(ctx context.Context) (uuid.UUID, error) {
	return s.principal(ctx, keyTreasury, "treasury")
}

// Asset returns the backing asset identifier.
func (s *Settings) Asset(ctx context.Context) (string, error) {
	val, ok, err := s.kv.Get(ctx, keyAsset)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("asset not configured: %w", policy.ErrNotFound)
	}
	return string(val), nil
}

func (s *Settings) principal(ctx context.Context, key, what string) (uuid.UUID, error) {
	val, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%s not configured: %w", what, policy.ErrNotFound)
	}
	id, err := uuid.Parse(string(val))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse stored %s principal: %w", what, err)
	}
	return id, nil
}
