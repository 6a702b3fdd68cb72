package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type account struct {
	principal uuid.UUID
	asset     string
}

// Ledger is an in-process custodial ledger. It stands in for the
// external asset service in tests and single-node development runs;
// production deployments wire NATSClient instead.
type Ledger struct {
	mu       sync.Mutex
	balances map[account]decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[account]decimal.Decimal)}
}

// Mint credits an account out of thin air. Test and dev setup only.
func (l *Ledger) Mint(principal uuid.UUID, asset string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := account{principal: principal, asset: asset}
	l.balances[key] = l.balance(key).Add(amount)
}

func (l *Ledger) Balance(principal uuid.UUID, asset string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account{principal: principal, asset: asset})
}

func (l *Ledger) Transfer(_ context.Context, from, to uuid.UUID, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src := account{principal: from, asset: asset}
	dst := account{principal: to, asset: asset}

	have := l.balance(src)
	if have.LessThan(amount) {
		return fmt.Errorf("insufficient balance for %s: have %s, need %s", from, have, amount)
	}

	l.balances[src] = have.Sub(amount)
	l.balances[dst] = l.balance(dst).Add(amount)
	return nil
}

// balance assumes l.mu is held.
func (l *Ledger) balance(key account) decimal.Decimal {
	if v, ok := l.balances[key]; ok {
		return v
	}
	return decimal.Zero
}
