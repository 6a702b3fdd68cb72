package policy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a policy. Unresolved is the only
// non-terminal state; settlement writes a terminal status and the payout
// exactly once, and neither is ever written again.
type Status uint8

const (
	StatusUnresolved Status = iota
	StatusOnTime
	StatusDelayed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusOnTime:
		return "on_time"
	case StatusDelayed:
		return "delayed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether the policy has been settled.
func (s Status) Terminal() bool {
	return s != StatusUnresolved
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unresolved":
		*s = StatusUnresolved
	case "on_time":
		*s = StatusOnTime
	case "delayed":
		*s = StatusDelayed
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown policy status %q", text)
	}
	return nil
}

// Policy is the unit of coverage. Ids are allocated from a strictly
// increasing counter and never reused.
type Policy struct {
	ID             uint64          `json:"id"`
	Customer       uuid.UUID       `json:"customer"`
	FlightID       string          `json:"flight_id"`
	FlightDate     time.Time       `json:"flight_date"`
	PremiumAmount  decimal.Decimal `json:"premium_amount"`
	CoverageAmount decimal.Decimal `json:"coverage_amount"`
	Status         Status          `json:"status"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
}

// ValidateCreation checks the creation preconditions: both amounts
// strictly positive and the flight date strictly in the future.
func ValidateCreation(premium, coverage decimal.Decimal, flightDate, now time.Time) error {
	if !premium.IsPositive() {
		return fmt.Errorf("premium %s: %w", premium, ErrInvalidAmount)
	}
	if !coverage.IsPositive() {
		return fmt.Errorf("coverage %s: %w", coverage, ErrInvalidAmount)
	}
	if !flightDate.After(now) {
		return fmt.Errorf("flight date %s not after %s: %w", flightDate.Format(time.RFC3339), now.Format(time.RFC3339), ErrInvalidSchedule)
	}
	return nil
}
