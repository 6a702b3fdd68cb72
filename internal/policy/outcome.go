package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OutcomeKind discriminates the flight disruption outcome.
type OutcomeKind uint8

const (
	OutcomeOnTime OutcomeKind = iota
	OutcomeCancelled
	OutcomeDelayed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOnTime:
		return "on_time"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeDelayed:
		return "delayed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Payout thresholds, in minutes of delay.
const (
	delayHalfPayoutMinutes = 60
	delayFullPayoutMinutes = 180
)

// Outcome is the resolver-asserted disruption outcome for a flight.
// DelayMinutes is meaningful only when Kind is OutcomeDelayed.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	DelayMinutes int64       `json:"delay_minutes,omitempty"`
}

func OnTime() Outcome {
	return Outcome{Kind: OutcomeOnTime}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

func Delayed(minutes int64) Outcome {
	return Outcome{Kind: OutcomeDelayed, DelayMinutes: minutes}
}

// ParseOutcome builds an Outcome from its wire form.
func ParseOutcome(kind string, delayMinutes int64) (Outcome, error) {
	switch kind {
	case "on_time":
		return OnTime(), nil
	case "cancelled":
		return Cancelled(), nil
	case "delayed":
		o := Delayed(delayMinutes)
		return o, o.Validate()
	default:
		return Outcome{}, fmt.Errorf("outcome kind %q: %w", kind, ErrInvalidOutcome)
	}
}

// Validate rejects unknown kinds and negative delay minutes.
func (o Outcome) Validate() error {
	switch o.Kind {
	case OutcomeOnTime, OutcomeCancelled:
		return nil
	case OutcomeDelayed:
		if o.DelayMinutes < 0 {
			return fmt.Errorf("delay of %d minutes: %w", o.DelayMinutes, ErrInvalidOutcome)
		}
		return nil
	default:
		return fmt.Errorf("outcome kind %d: %w", o.Kind, ErrInvalidOutcome)
	}
}

// Settle returns the terminal status and the payout owed to the
// customer for a policy under this outcome:
//
//	cancelled          → full premium refund
//	on time            → no payout
//	delayed  < 60 min  → no payout
//	delayed 60–180 min → half the coverage (floored)
//	delayed  > 180 min → full coverage
func (o Outcome) Settle(p *Policy) (Status, decimal.Decimal) {
	switch o.Kind {
	case OutcomeCancelled:
		return StatusCancelled, p.PremiumAmount
	case OutcomeDelayed:
		if o.DelayMinutes > delayFullPayoutMinutes {
			return StatusDelayed, p.CoverageAmount
		}
		if o.DelayMinutes >= delayHalfPayoutMinutes {
			return StatusDelayed, p.CoverageAmount.Div(decimal.NewFromInt(2)).Floor()
		}
		return StatusDelayed, decimal.Zero
	default:
		return StatusOnTime, decimal.Zero
	}
}
