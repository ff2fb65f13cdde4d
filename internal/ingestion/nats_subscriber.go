package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"CTFIndexer/internal/observability"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw chain
// events into the ingestion channel, where the shell parses and forwards
// them to the deterministic core.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

// RawEvent is the received-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before the core sees it.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // ACK after the event is applied and queued for persistence
	NakFunc   func() // NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject layout. One subject per
// event type so relays for the different contracts can publish
// independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "ctf.condition.prepared.>", EventType: "ConditionPreparation", ConsumerName: "indexer-cond-prep", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.condition.resolved.>", EventType: "ConditionResolution", ConsumerName: "indexer-cond-res", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.position.split.>", EventType: "PositionSplit", ConsumerName: "indexer-split", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.position.merge.>", EventType: "PositionsMerge", ConsumerName: "indexer-merge", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.payout.redemption.>", EventType: "PayoutRedemption", ConsumerName: "indexer-redemption", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.transfer.single.>", EventType: "TransferSingle", ConsumerName: "indexer-transfer", StreamName: "CTF_EVENTS"},
		{Subject: "ctf.transfer.batch.>", EventType: "TransferBatch", ConsumerName: "indexer-transfer-batch", StreamName: "CTF_EVENTS"},
		{Subject: "exchange.tokens.registered.>", EventType: "TokenRegistered", ConsumerName: "indexer-tokens", StreamName: "EXCHANGE_EVENTS"},
		{Subject: "exchange.orders.filled.>", EventType: "OrderFilled", ConsumerName: "indexer-fills", StreamName: "EXCHANGE_EVENTS"},
		{Subject: "negrisk.question.prepared.>", EventType: "QuestionPrepared", ConsumerName: "indexer-question", StreamName: "NEGRISK_EVENTS"},
		{Subject: "negrisk.positions.converted.>", EventType: "PositionsConverted", ConsumerName: "indexer-convert", StreamName: "NEGRISK_EVENTS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s. Redelivery of an
// already-applied event is harmless: the core deduplicates by event id.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	logger := observability.NewLogger("ingestion")
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		logger.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h; the Postgres
// event log is the durable record, NATS only buffers the live feed.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	logger := observability.NewLogger("ingestion")
	streams := []jetstream.StreamConfig{
		{
			Name:      "CTF_EVENTS",
			Subjects:  []string{"ctf.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "EXCHANGE_EVENTS",
			Subjects:  []string{"exchange.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "NEGRISK_EVENTS",
			Subjects:  []string{"negrisk.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("stream ensured")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("ingestion")
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// EventTypeForSubject resolves the configured event type for a received
// subject. Subjects carry a trailing shard token, so prefix matching is
// used rather than equality.
func EventTypeForSubject(subjects []SubjectConfig, subject string) (string, bool) {
	for _, cfg := range subjects {
		prefix := cfg.Subject
		if n := len(prefix); n > 0 && prefix[n-1] == '>' {
			prefix = prefix[:n-1]
		}
		if len(subject) >= len(prefix) && subject[:len(prefix)] == prefix {
			return cfg.EventType, true
		}
	}
	return "", false
}
