package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/event"
)

const eventsStream = "INSURANCE_EVENTS"

// Publisher drains the engine's event queue and publishes each
// envelope to insurance.events.{type}. Publishing is best effort: a
// failed publish is logged and the loop keeps going, since the audit
// trail already holds the authoritative record.
type Publisher struct {
	js     jetstream.JetStream
	events <-chan event.Envelope
	log    zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, events <-chan event.Envelope, log zerolog.Logger) *Publisher {
	return &Publisher{js: js, events: events, log: log}
}

// Run publishes until the context ends or the queue closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-p.events:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				p.log.Warn().
					Err(err).
					Str("type", string(env.Type)).
					Stringer("event_id", env.EventID).
					Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := fmt.Sprintf("insurance.events.%s", env.Type)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureEventsStream creates the outbound events stream if absent.
func EnsureEventsStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      eventsStream,
		Subjects:  []string{"insurance.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", eventsStream, err)
	}
	return nil
}
