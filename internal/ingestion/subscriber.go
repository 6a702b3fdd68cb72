package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/core"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
)

const (
	flightStatusStream   = "FLIGHT_STATUS"
	flightStatusSubject  = "flights.status.>"
	flightStatusConsumer = "insurance-resolver"
)

// FlightStatusMessage is the inbound wire form of a flight outcome
// assertion from the status feed.
type FlightStatusMessage struct {
	FlightID     string `json:"flight_id"`
	Outcome      string `json:"outcome"`
	DelayMinutes int64  `json:"delay_minutes,omitempty"`
}

// Resolver is the slice of the engine the subscriber drives.
type Resolver interface {
	AdminPrincipal(ctx context.Context) (uuid.UUID, error)
	ResolveFlight(ctx context.Context, flightID string, outcome policy.Outcome) ([]core.Result, error)
}

// FlightStatusSubscriber resolves flights from the status feed. It
// acts with the administrator principal, since the feed is the
// deployment's trusted resolver.
type FlightStatusSubscriber struct {
	js       jetstream.JetStream
	resolver Resolver
	log      zerolog.Logger
	consume  jetstream.ConsumeContext
}

func NewFlightStatusSubscriber(js jetstream.JetStream, resolver Resolver, log zerolog.Logger) *FlightStatusSubscriber {
	return &FlightStatusSubscriber{js: js, resolver: resolver, log: log}
}

// EnsureFlightStatusStream creates the inbound stream if absent.
func EnsureFlightStatusStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      flightStatusStream,
		Subjects:  []string{flightStatusSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", flightStatusStream, err)
	}
	return nil
}

// Subscribe creates the durable consumer and starts processing.
func (s *FlightStatusSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, flightStatusStream, jetstream.ConsumerConfig{
		Durable:       flightStatusConsumer,
		FilterSubject: flightStatusSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", flightStatusConsumer, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		s.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", flightStatusConsumer, err)
	}
	s.consume = cc
	s.log.Info().Str("subject", flightStatusSubject).Msg("flight status subscriber started")
	return nil
}

// Stop halts the consumer.
func (s *FlightStatusSubscriber) Stop() {
	if s.consume != nil {
		s.consume.Stop()
	}
}

// handle processes one status message. Malformed messages and
// permanent rejections are acked so they do not loop through
// redelivery; transient failures are nak'd for retry.
func (s *FlightStatusSubscriber) handle(ctx context.Context, msg jetstream.Msg) {
	var m FlightStatusMessage
	if err := json.Unmarshal(msg.Data(), &m); err != nil {
		s.log.Error().Err(err).Str("subject", msg.Subject()).Msg("malformed flight status message")
		_ = msg.Ack()
		return
	}

	outcome, err := policy.ParseOutcome(m.Outcome, m.DelayMinutes)
	if err != nil {
		s.log.Error().Err(err).Str("flight_id", m.FlightID).Msg("invalid flight outcome")
		_ = msg.Ack()
		return
	}

	admin, err := s.resolver.AdminPrincipal(ctx)
	if err != nil {
		// Not initialized yet; retry later.
		s.log.Warn().Err(err).Msg("resolver has no administrator yet")
		_ = msg.Nak()
		return
	}

	results, err := s.resolver.ResolveFlight(auth.WithPrincipal(ctx, admin), m.FlightID, outcome)
	switch {
	case err == nil:
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			// Unsettled policies remain indexed; redeliver for retry.
			s.log.Warn().Str("flight_id", m.FlightID).Int("failed", failed).Msg("partial flight resolution")
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	case errors.Is(err, policy.ErrNoPoliciesForFlight):
		// No coverage sold for this flight, or already fully resolved.
		_ = msg.Ack()
	default:
		s.log.Error().Err(err).Str("flight_id", m.FlightID).Msg("flight resolution failed")
		_ = msg.Nak()
	}
}
