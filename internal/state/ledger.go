package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

// PolicyLedger owns policy records and the id counter. Ids start at 1
// (pre-increment) and are never reused; records transition out of
// Unresolved at most once.
type PolicyLedger struct {
	kv store.Store
}

func NewPolicyLedger(kv store.Store) *PolicyLedger {
	return &PolicyLedger{kv: kv}
}

// Create allocates the next id and writes a new Unresolved record with
// zero payout. Validation and premium collection happen in the engine
// before this is called.
func (l *PolicyLedger) Create(
	ctx context.Context,
	customer uuid.UUID,
	flightID string,
	flightDate time.Time,
	premium, coverage decimal.Decimal,
) (*policy.Policy, error) {
	id, err := l.nextID(ctx)
	if err != nil {
		return nil, err
	}

	p := &policy.Policy{
		ID:             id,
		Customer:       customer,
		FlightID:       flightID,
		FlightDate:     flightDate,
		PremiumAmount:  premium,
		CoverageAmount: coverage,
		Status:         policy.StatusUnresolved,
		PayoutAmount:   decimal.Zero,
	}

	if err := l.put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads a policy record by id.
func (l *PolicyLedger) Get(ctx context.Context, id uint64) (*policy.Policy, error) {
	val, ok, err := l.kv.Get(ctx, policyKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("policy %d: %w", id, policy.ErrNotFound)
	}

	var p policy.Policy
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode policy %d: %w", id, err)
	}
	return &p, nil
}

// Settle writes the terminal status and payout. Fails when the policy
// has already left Unresolved; the payout field is written here and
// never again.
func (l *PolicyLedger) Settle(ctx context.Context, id uint64, status policy.Status, payout decimal.Decimal) (*policy.Policy, error) {
	p, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("policy %d is %s: %w", id, p.Status, policy.ErrAlreadyResolved)
	}
	if !status.Terminal() {
		return nil, fmt.Errorf("policy %d: settle requires a terminal status, got %s", id, status)
	}

	p.Status = status
	p.PayoutAmount = payout
	if err := l.put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Count returns the number of policies ever created.
func (l *PolicyLedger) Count(ctx context.Context) (uint64, error) {
	return l.counter(ctx)
}

func (l *PolicyLedger) put(ctx context.Context, p *policy.Policy) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode policy %d: %w", p.ID, err)
	}
	return l.kv.Set(ctx, policyKey(p.ID), val)
}

func (l *PolicyLedger) nextID(ctx context.Context) (uint64, error) {
	counter, err := l.counter(ctx)
	if err != nil {
		return 0, err
	}
	counter++
	if err := l.kv.Set(ctx, keyPolicyCounter, []byte(strconv.FormatUint(counter, 10))); err != nil {
		return 0, err
	}
	return counter, nil
}

func (l *PolicyLedger) counter(ctx context.Context) (uint64, error) {
	val, ok, err := l.kv.Get(ctx, keyPolicyCounter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	counter, err := strconv.ParseUint(string(val), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse policy counter: %w", err)
	}
	return counter, nil
}
