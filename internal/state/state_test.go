package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/state"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

var departure = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

// ============================================================================
// Test: PolicyLedger
// ============================================================================

func TestPolicyLedger_IDsStartAtOne(t *testing.T) {
	ledger := state.NewPolicyLedger(store.NewMemory())
	ctx := context.Background()

	p1, err := ledger.Create(ctx, uuid.New(), "AA100", departure, decimal.NewFromInt(50), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p2, err := ledger.Create(ctx, uuid.New(), "AA100", departure, decimal.NewFromInt(50), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if p1.ID != 1 || p2.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", p1.ID, p2.ID)
	}
	if count, _ := ledger.Count(ctx); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestPolicyLedger_GetMissing(t *testing.T) {
	ledger := state.NewPolicyLedger(store.NewMemory())
	if _, err := ledger.Get(context.Background(), 42); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPolicyLedger_SettleWriteOnce(t *testing.T) {
	ledger := state.NewPolicyLedger(store.NewMemory())
	ctx := context.Background()

	p, err := ledger.Create(ctx, uuid.New(), "AA100", departure, decimal.NewFromInt(50), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	settled, err := ledger.Settle(ctx, p.ID, policy.StatusDelayed, decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != policy.StatusDelayed || !settled.PayoutAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("settled = %s/%s, want delayed/250", settled.Status, settled.PayoutAmount)
	}

	// Second settlement must be refused and the record left intact.
	if _, err := ledger.Settle(ctx, p.ID, policy.StatusOnTime, decimal.Zero); !errors.Is(err, policy.ErrAlreadyResolved) {
		t.Errorf("resettle err = %v, want ErrAlreadyResolved", err)
	}
	got, _ := ledger.Get(ctx, p.ID)
	if got.Status != policy.StatusDelayed || !got.PayoutAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("record mutated by failed resettle: %s/%s", got.Status, got.PayoutAmount)
	}
}

func TestPolicyLedger_SettleRequiresTerminalStatus(t *testing.T) {
	ledger := state.NewPolicyLedger(store.NewMemory())
	ctx := context.Background()

	p, _ := ledger.Create(ctx, uuid.New(), "AA100", departure, decimal.NewFromInt(50), decimal.NewFromInt(500))
	if _, err := ledger.Settle(ctx, p.ID, policy.StatusUnresolved, decimal.Zero); err == nil {
		t.Error("settling to unresolved should fail")
	}
}

// ============================================================================
// Test: PoolAccountant
// ============================================================================

func TestPoolAccountant_CreditDebit(t *testing.T) {
	pool := state.NewPoolAccountant(store.NewMemory())
	ctx := context.Background()

	if balance, _ := pool.Balance(ctx); !balance.IsZero() {
		t.Errorf("fresh balance = %s, want 0", balance)
	}

	if _, err := pool.Credit(ctx, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, err := pool.Debit(ctx, decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(700)) {
		t.Errorf("balance = %s, want 700", balance)
	}
}

func TestPoolAccountant_DebitOverdraw(t *testing.T) {
	pool := state.NewPoolAccountant(store.NewMemory())
	ctx := context.Background()

	pool.Credit(ctx, decimal.NewFromInt(100))
	if _, err := pool.Debit(ctx, decimal.NewFromInt(101)); !errors.Is(err, policy.ErrInsufficientPool) {
		t.Errorf("err = %v, want ErrInsufficientPool", err)
	}
	if balance, _ := pool.Balance(ctx); !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance changed by failed debit: %s", balance)
	}
}

func TestPoolAccountant_NonPositiveAmounts(t *testing.T) {
	pool := state.NewPoolAccountant(store.NewMemory())
	ctx := context.Background()

	if _, err := pool.Credit(ctx, decimal.Zero); !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("zero credit err = %v, want ErrInvalidAmount", err)
	}
	if _, err := pool.Debit(ctx, decimal.NewFromInt(-5)); !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("negative debit err = %v, want ErrInvalidAmount", err)
	}
}

func TestPoolAccountant_SolvencyGate(t *testing.T) {
	pool := state.NewPoolAccountant(store.NewMemory())
	ctx := context.Background()

	pool.Credit(ctx, decimal.NewFromInt(400))
	if err := pool.CheckSolvencyForNewExposure(ctx, decimal.NewFromInt(500)); !errors.Is(err, policy.ErrInsufficientLiquidity) {
		t.Errorf("err = %v, want ErrInsufficientLiquidity", err)
	}
	if err := pool.CheckSolvencyForNewExposure(ctx, decimal.NewFromInt(400)); err != nil {
		t.Errorf("coverage equal to balance rejected: %v", err)
	}
}

func TestPoolAccountant_WithdrawalSafety(t *testing.T) {
	pool := state.NewPoolAccountant(store.NewMemory())
	ctx := context.Background()

	pool.Credit(ctx, decimal.NewFromInt(1000))
	exposure := decimal.NewFromInt(600)

	if err := pool.CheckWithdrawalSafe(ctx, decimal.NewFromInt(400), exposure); err != nil {
		t.Errorf("withdrawal down to exposure rejected: %v", err)
	}
	if err := pool.CheckWithdrawalSafe(ctx, decimal.NewFromInt(401), exposure); !errors.Is(err, policy.ErrInsufficientCoverage) {
		t.Errorf("err = %v, want ErrInsufficientCoverage", err)
	}
}

// ============================================================================
// Test: IndexMaintainer
// ============================================================================

func TestIndexMaintainer_ActiveSet(t *testing.T) {
	idx := state.NewIndexMaintainer(store.NewMemory())
	ctx := context.Background()

	idx.AddActive(ctx, 1)
	idx.AddActive(ctx, 2)
	idx.AddActive(ctx, 3)
	idx.RemoveActive(ctx, 2)

	ids, err := idx.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("active = %v, want [1 3]", ids)
	}

	// Removing an absent id is a no-op.
	if err := idx.RemoveActive(ctx, 99); err != nil {
		t.Errorf("remove absent: %v", err)
	}
}

func TestIndexMaintainer_FlightIndex(t *testing.T) {
	idx := state.NewIndexMaintainer(store.NewMemory())
	ctx := context.Background()

	if ok, _ := idx.HasFlight(ctx, "AA100"); ok {
		t.Error("fresh flight index should be absent")
	}
	if ids, _ := idx.ListForFlight(ctx, "AA100"); len(ids) != 0 {
		t.Errorf("unknown flight ids = %v, want empty", ids)
	}

	idx.AppendFlightPolicy(ctx, "AA100", 1)
	idx.AppendFlightPolicy(ctx, "AA100", 2)
	idx.AppendFlightPolicy(ctx, "BA200", 3)

	ids, _ := idx.ListForFlight(ctx, "AA100")
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("AA100 ids = %v, want [1 2]", ids)
	}

	idx.ClearFlight(ctx, "AA100")
	if ok, _ := idx.HasFlight(ctx, "AA100"); ok {
		t.Error("cleared flight still indexed")
	}
	if ok, _ := idx.HasFlight(ctx, "BA200"); !ok {
		t.Error("clearing one flight removed another")
	}
}

// ============================================================================
// Test: Settings
// ============================================================================

func TestSettings_InitializeOnceSemantics(t *testing.T) {
	settings := state.NewSettings(store.NewMemory())
	ctx := context.Background()

	if ok, _ := settings.Initialized(ctx); ok {
		t.Error("fresh settings report initialized")
	}
	if _, err := settings.Admin(ctx); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("admin before init err = %v, want ErrNotFound", err)
	}

	admin, treasury := uuid.New(), uuid.New()
	if err := settings.Initialize(ctx, admin, "USDC", treasury); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	gotAdmin, _ := settings.Admin(ctx)
	gotTreasury, _ := settings.Treasury(ctx)
	gotAsset, _ := settings.Asset(ctx)
	if gotAdmin != admin || gotTreasury != treasury || gotAsset != "USDC" {
		t.Errorf("settings = %s/%s/%s, want %s/%s/USDC", gotAdmin, gotTreasury, gotAsset, admin, treasury)
	}
}
