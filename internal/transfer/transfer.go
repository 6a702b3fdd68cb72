package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// Service moves fungible value between principals. The core consumes
// this contract for premium collection, payouts, deposits, and
// withdrawals; it never holds asset balances itself. A failed transfer
// aborts the enclosing operation.
type Service interface {
	Transfer(ctx context.Context, from, to uuid.UUID, asset string, amount decimal.Decimal) error
}

// Request is the wire form of a transfer instruction.
type Request struct {
	RequestID uuid.UUID       `json:"request_id"`
	From      uuid.UUID       `json:"from"`
	To        uuid.UUID       `json:"to"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
}

// Response is the custodial service's reply.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NATSClient instructs the custodial asset service over NATS
// request/reply. The call is synchronous: either the service confirms
// the transfer or the caller's operation aborts.
type NATSClient struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

func NewNATSClient(nc *nats.Conn, subject string, timeout time.Duration) *NATSClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSClient{nc: nc, subject: subject, timeout: timeout}
}

func (c *NATSClient) Transfer(ctx context.Context, from, to uuid.UUID, asset string, amount decimal.Decimal) error {
	req := Request{
		RequestID: uuid.New(),
		From:      from,
		To:        to,
		Asset:     asset,
		Amount:    amount,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return fmt.Errorf("transfer request %s: %w", req.RequestID, err)
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return fmt.Errorf("decode transfer response %s: %w", req.RequestID, err)
	}
	if !resp.OK {
		return fmt.Errorf("transfer %s declined: %s", req.RequestID, resp.Error)
	}
	return nil
}
