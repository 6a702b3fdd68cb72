package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// OperationRecord is one audit trail entry as served to readers.
type OperationRecord struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Principal *string         `json:"principal,omitempty"`
	FlightID  *string         `json:"flight_id,omitempty"`
	PolicyID  *int64          `json:"policy_id,omitempty"`
	Amount    *string         `json:"amount,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryService serves the audit trail back out of Postgres.
type HistoryService struct {
	db *sql.DB
}

func NewHistoryService(db *sql.DB) *HistoryService {
	return &HistoryService{db: db}
}

// PolicyHistory returns every recorded operation touching a policy,
// oldest first.
func (s *HistoryService) PolicyHistory(ctx context.Context, policyID uint64) ([]OperationRecord, error) {
	return s.query(ctx, `
		SELECT event_id, event_type, principal, flight_id, policy_id, amount, payload, created_at
		FROM audit.operations
		WHERE policy_id = $1
		ORDER BY created_at ASC`, int64(policyID))
}

// FlightHistory returns every recorded operation touching a flight,
// oldest first.
func (s *HistoryService) FlightHistory(ctx context.Context, flightID string) ([]OperationRecord, error) {
	return s.query(ctx, `
		SELECT event_id, event_type, principal, flight_id, policy_id, amount, payload, created_at
		FROM audit.operations
		WHERE flight_id = $1
		ORDER BY created_at ASC`, flightID)
}

func (s *HistoryService) query(ctx context.Context, q string, arg any) ([]OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var out []OperationRecord
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(
			&rec.EventID, &rec.EventType, &rec.Principal, &rec.FlightID,
			&rec.PolicyID, &rec.Amount, &rec.Payload, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
