// Package persistence writes the audit trail. Every applied operation
// produces one row in audit.operations, keyed by event id so replays
// are idempotent. Writes happen off the hot path through AuditWorker.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OperationRow is one audit record. Optional columns are pointers so
// they land as SQL NULL.
type OperationRow struct {
	EventID   string
	EventType string
	Principal *string
	FlightID  *string
	PolicyID  *int64
	Amount    *string
	Payload   []byte
	CreatedAt time.Time
}

// AuditWriter persists operation rows in batches.
type AuditWriter struct {
	db *sql.DB
}

func NewAuditWriter(db *sql.DB) *AuditWriter {
	return &AuditWriter{db: db}
}

// WriteBatch inserts all rows in a single statement inside one
// transaction. Conflicting event ids are skipped, never updated.
func (w *AuditWriter) WriteBatch(ctx context.Context, rows []OperationRow) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit.operations
		(event_id, event_type, principal, flight_id, policy_id, amount, payload, created_at)
	VALUES `)

	args := make([]any, 0, len(rows)*8)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args,
			row.EventID, row.EventType, row.Principal, row.FlightID,
			row.PolicyID, row.Amount, row.Payload, row.CreatedAt)
	}
	sb.WriteString(" ON CONFLICT (event_id) DO NOTHING")

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert %d audit rows: %w", len(rows), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}
