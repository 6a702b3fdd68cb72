package state

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

// PoolAccountant owns the liquidity pool balance. The balance is an
// accounting figure, separate from the treasury's custodial asset
// balance; the two must reconcile (premiums and deposits in, payouts
// and withdrawals out).
type PoolAccountant struct {
	kv store.Store
}

func NewPoolAccountant(kv store.Store) *PoolAccountant {
	return &PoolAccountant{kv: kv}
}

// Balance returns the current pool balance, zero when unset.
func (a *PoolAccountant) Balance(ctx context.Context) (decimal.Decimal, error) {
	val, ok, err := a.kv.Get(ctx, keyPoolBalance)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	balance, err := decimal.NewFromString(string(val))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse pool balance: %w", err)
	}
	return balance, nil
}

// Initialize seeds the balance at service initialization.
func (a *PoolAccountant) Initialize(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("initial pool %s: %w", amount, policy.ErrInvalidAmount)
	}
	return a.setBalance(ctx, amount)
}

// Credit increases the balance unconditionally (premiums, deposits).
func (a *PoolAccountant) Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("credit %s: %w", amount, policy.ErrInvalidAmount)
	}
	balance, err := a.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	balance = balance.Add(amount)
	if err := a.setBalance(ctx, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Debit decreases the balance. Fails when the amount exceeds the
// current balance.
func (a *PoolAccountant) Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("debit %s: %w", amount, policy.ErrInvalidAmount)
	}
	balance, err := a.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("debit %s from %s: %w", amount, balance, policy.ErrInsufficientPool)
	}
	balance = balance.Sub(amount)
	if err := a.setBalance(ctx, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// CheckSolvencyForNewExposure is the creation-time solvency gate: the
// gross balance must cover the new policy's full coverage amount. This
// is checked against the gross balance, not balance minus existing
// exposure; the stricter invariant is guarded at withdrawal time.
func (a *PoolAccountant) CheckSolvencyForNewExposure(ctx context.Context, coverage decimal.Decimal) error {
	balance, err := a.Balance(ctx)
	if err != nil {
		return err
	}
	if balance.LessThan(coverage) {
		return fmt.Errorf("pool %s cannot back coverage %s: %w", balance, coverage, policy.ErrInsufficientLiquidity)
	}
	return nil
}

// CheckWithdrawalSafe enforces the solvency invariant: balance after
// the withdrawal must still cover the total exposure of unresolved
// policies. The exposure is recomputed live by the caller.
func (a *PoolAccountant) CheckWithdrawalSafe(ctx context.Context, amount, exposure decimal.Decimal) error {
	balance, err := a.Balance(ctx)
	if err != nil {
		return err
	}
	if balance.Sub(amount).LessThan(exposure) {
		return fmt.Errorf("withdrawing %s from %s with exposure %s: %w", amount, balance, exposure, policy.ErrInsufficientCoverage)
	}
	return nil
}

func (a *PoolAccountant) setBalance(ctx context.Context, balance decimal.Decimal) error {
	return a.kv.Set(ctx, keyPoolBalance, []byte(balance.String()))
}
