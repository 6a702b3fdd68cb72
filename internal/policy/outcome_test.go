package policy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
)

func testPolicy(premium, coverage int64) *policy.Policy {
	return &policy.Policy{
		ID:             1,
		FlightID:       "AA100",
		PremiumAmount:  decimal.NewFromInt(premium),
		CoverageAmount: decimal.NewFromInt(coverage),
		Status:         policy.StatusUnresolved,
		PayoutAmount:   decimal.Zero,
	}
}

// ============================================================================
// Test: Outcome.Settle payout table
// ============================================================================

func TestSettle_OnTime(t *testing.T) {
	status, payout := policy.OnTime().Settle(testPolicy(50, 500))
	if status != policy.StatusOnTime {
		t.Errorf("status = %s, want on_time", status)
	}
	if !payout.IsZero() {
		t.Errorf("payout = %s, want 0", payout)
	}
}

func TestSettle_Cancelled_RefundsPremium(t *testing.T) {
	status, payout := policy.Cancelled().Settle(testPolicy(50, 500))
	if status != policy.StatusCancelled {
		t.Errorf("status = %s, want cancelled", status)
	}
	if !payout.Equal(decimal.NewFromInt(50)) {
		t.Errorf("payout = %s, want 50 (premium refund)", payout)
	}
}

func TestSettle_DelayBelowThreshold(t *testing.T) {
	status, payout := policy.Delayed(59).Settle(testPolicy(50, 500))
	if status != policy.StatusDelayed {
		t.Errorf("status = %s, want delayed", status)
	}
	if !payout.IsZero() {
		t.Errorf("payout for 59 min delay = %s, want 0", payout)
	}
}

func TestSettle_HalfPayoutBoundaries(t *testing.T) {
	for _, minutes := range []int64{60, 120, 180} {
		_, payout := policy.Delayed(minutes).Settle(testPolicy(50, 500))
		if !payout.Equal(decimal.NewFromInt(250)) {
			t.Errorf("payout for %d min delay = %s, want 250", minutes, payout)
		}
	}
}

func TestSettle_HalfPayoutFloorsOddCoverage(t *testing.T) {
	_, payout := policy.Delayed(90).Settle(testPolicy(10, 501))
	if !payout.Equal(decimal.NewFromInt(250)) {
		t.Errorf("payout for coverage 501 = %s, want 250 (floored)", payout)
	}
}

func TestSettle_FullPayoutAboveThreshold(t *testing.T) {
	_, payout := policy.Delayed(181).Settle(testPolicy(50, 500))
	if !payout.Equal(decimal.NewFromInt(500)) {
		t.Errorf("payout for 181 min delay = %s, want 500 (full coverage)", payout)
	}
}

// ============================================================================
// Test: Outcome validation and parsing
// ============================================================================

func TestOutcomeValidate_NegativeDelay(t *testing.T) {
	if err := policy.Delayed(-1).Validate(); !errors.Is(err, policy.ErrInvalidOutcome) {
		t.Errorf("err = %v, want ErrInvalidOutcome", err)
	}
}

func TestParseOutcome(t *testing.T) {
	o, err := policy.ParseOutcome("delayed", 90)
	if err != nil {
		t.Fatalf("parse delayed: %v", err)
	}
	if o.Kind != policy.OutcomeDelayed || o.DelayMinutes != 90 {
		t.Errorf("got %+v, want delayed/90", o)
	}

	if _, err := policy.ParseOutcome("diverted", 0); !errors.Is(err, policy.ErrInvalidOutcome) {
		t.Errorf("unknown kind err = %v, want ErrInvalidOutcome", err)
	}
	if _, err := policy.ParseOutcome("delayed", -5); !errors.Is(err, policy.ErrInvalidOutcome) {
		t.Errorf("negative delay err = %v, want ErrInvalidOutcome", err)
	}
}

// ============================================================================
// Test: creation validation and status encoding
// ============================================================================

func TestValidateCreation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)

	if err := policy.ValidateCreation(decimal.NewFromInt(50), decimal.NewFromInt(500), future, now); err != nil {
		t.Errorf("valid creation rejected: %v", err)
	}
	if err := policy.ValidateCreation(decimal.Zero, decimal.NewFromInt(500), future, now); !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("zero premium err = %v, want ErrInvalidAmount", err)
	}
	if err := policy.ValidateCreation(decimal.NewFromInt(50), decimal.NewFromInt(-1), future, now); !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("negative coverage err = %v, want ErrInvalidAmount", err)
	}
	if err := policy.ValidateCreation(decimal.NewFromInt(50), decimal.NewFromInt(500), now, now); !errors.Is(err, policy.ErrInvalidSchedule) {
		t.Errorf("departure at now err = %v, want ErrInvalidSchedule", err)
	}
}

func TestStatusTextRoundTrip(t *testing.T) {
	for _, s := range []policy.Status{
		policy.StatusUnresolved, policy.StatusOnTime, policy.StatusDelayed, policy.StatusCancelled,
	} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("marshal %s: %v", s, err)
		}
		var back policy.Status
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != s {
			t.Errorf("round trip %s -> %q -> %s", s, text, back)
		}
	}
}
