package transfer_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/transfer"
)

func TestLedger_Transfer(t *testing.T) {
	ledger := transfer.NewLedger()
	from, to := uuid.New(), uuid.New()

	ledger.Mint(from, "USDC", decimal.NewFromInt(100))

	if err := ledger.Transfer(context.Background(), from, to, "USDC", decimal.NewFromInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.Balance(from, "USDC"); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("from balance = %s, want 60", got)
	}
	if got := ledger.Balance(to, "USDC"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("to balance = %s, want 40", got)
	}
}

func TestLedger_InsufficientBalance(t *testing.T) {
	ledger := transfer.NewLedger()
	from, to := uuid.New(), uuid.New()
	ledger.Mint(from, "USDC", decimal.NewFromInt(10))

	if err := ledger.Transfer(context.Background(), from, to, "USDC", decimal.NewFromInt(11)); err == nil {
		t.Fatal("overdraw should fail")
	}
	if got := ledger.Balance(from, "USDC"); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("from balance changed by failed transfer: %s", got)
	}
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	ledger := transfer.NewLedger()
	from, to := uuid.New(), uuid.New()
	ledger.Mint(from, "USDC", decimal.NewFromInt(10))

	if err := ledger.Transfer(context.Background(), from, to, "USDC", decimal.Zero); err == nil {
		t.Error("zero transfer should fail")
	}
	if err := ledger.Transfer(context.Background(), from, to, "USDC", decimal.NewFromInt(-5)); err == nil {
		t.Error("negative transfer should fail")
	}
}

func TestLedger_BalancesArePerAsset(t *testing.T) {
	ledger := transfer.NewLedger()
	acct := uuid.New()
	ledger.Mint(acct, "USDC", decimal.NewFromInt(100))

	if got := ledger.Balance(acct, "XLM"); !got.IsZero() {
		t.Errorf("XLM balance = %s, want 0", got)
	}
}
