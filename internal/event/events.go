// Package event defines the outbound event envelope published after
// every successful state transition. Events are observational: the
// engine has already committed the change before the envelope leaves
// the process, and a full outbound queue drops rather than blocks.
package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeInitialized    Type = "initialized"
	TypePolicyCreated  Type = "policy_created"
	TypePolicyResolved Type = "policy_resolved"
	TypeFlightResolved Type = "flight_resolved"
	TypePoolDeposited  Type = "pool_deposited"
	TypePoolWithdrawn  Type = "pool_withdrawn"
)

// Envelope wraps a single domain event. EventID is assigned at emit
// time and doubles as the audit idempotency key.
type Envelope struct {
	EventID   uuid.UUID `json:"event_id"`
	Type      Type      `json:"type"`
	FlightID  string    `json:"flight_id,omitempty"`
	PolicyID  uint64    `json:"policy_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type InitializedPayload struct {
	Admin    uuid.UUID `json:"admin"`
	Asset    string    `json:"asset"`
	Treasury uuid.UUID `json:"treasury"`
	Seed     string    `json:"seed"`
}

type PolicyCreatedPayload struct {
	PolicyID       uint64    `json:"policy_id"`
	Customer       uuid.UUID `json:"customer"`
	FlightID       string    `json:"flight_id"`
	FlightDate     time.Time `json:"flight_date"`
	PremiumAmount  string    `json:"premium_amount"`
	CoverageAmount string    `json:"coverage_amount"`
	PoolBalance    string    `json:"pool_balance"`
}

type PolicyResolvedPayload struct {
	PolicyID     uint64    `json:"policy_id"`
	Customer     uuid.UUID `json:"customer"`
	FlightID     string    `json:"flight_id"`
	Status       string    `json:"status"`
	PayoutAmount string    `json:"payout_amount"`
	PoolBalance  string    `json:"pool_balance"`
}

type FlightResolvedPayload struct {
	FlightID string `json:"flight_id"`
	Settled  int    `json:"settled"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Cleared  bool   `json:"cleared"`
}

type PoolMovedPayload struct {
	Principal   uuid.UUID `json:"principal"`
	Amount      string    `json:"amount"`
	PoolBalance string    `json:"pool_balance"`
}
