package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"AuctionLedger/internal/observability"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds events
// into the deterministic core via the eventChan. NATS JetStream is the
// primary high-throughput ingestion surface; each subject maps to an
// event type.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
	metrics   *observability.Metrics
}

// RawEvent is the parsed-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before sending to the core.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Each event
// type has its own subject for independent scaling. DayRolloverTick is not
// listed: the in-process cron injects ticks directly.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "auction.schedule.>", EventType: "ScheduleSet", ConsumerName: "ledger-schedule", StreamName: "AUCTION_CONFIG"},
		{Subject: "auction.vault.deposits.>", EventType: "VaultDeposit", ConsumerName: "ledger-vault-deposits", StreamName: "AUCTION_VAULT"},
		{Subject: "auction.registrations.>", EventType: "ParticipantRegistration", ConsumerName: "ledger-registrations", StreamName: "AUCTION_PARTICIPANTS"},
		{Subject: "auction.entitlements.>", EventType: "EntitlementMint", ConsumerName: "ledger-entitlements", StreamName: "AUCTION_ENTITLEMENTS"},
		{Subject: "auction.claims.>", EventType: "AuctionClaim", ConsumerName: "ledger-claims", StreamName: "AUCTION_SETTLEMENT"},
		{Subject: "auction.burns.>", EventType: "AuctionBurn", ConsumerName: "ledger-burns", StreamName: "AUCTION_SETTLEMENT"},
		{Subject: "auction.swaps.>", EventType: "AuctionSwap", ConsumerName: "ledger-swaps", StreamName: "AUCTION_SETTLEMENT"},
		{Subject: "auction.reverse.swaps.>", EventType: "ReverseSwap", ConsumerName: "ledger-reverse-swaps", StreamName: "AUCTION_REVERSE"},
		{Subject: "auction.reverse.burns.>", EventType: "ReverseBurn", ConsumerName: "ledger-reverse-burns", StreamName: "AUCTION_REVERSE"},
		{Subject: "auction.ratios.>", EventType: "PoolRatioUpdate", ConsumerName: "ledger-ratios", StreamName: "AUCTION_RATIOS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent, metrics *observability.Metrics) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		metrics:   metrics,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
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

		subject := cfg.Subject
		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			if ns.metrics != nil {
				if md, mdErr := msg.Metadata(); mdErr == nil {
					ns.metrics.NATSPullLatency.WithLabelValues(subject).Observe(time.Since(md.Timestamp).Seconds())
				}
			}

			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "AUCTION_CONFIG",
			Subjects:  []string{"auction.schedule.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_VAULT",
			Subjects:  []string{"auction.vault.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_PARTICIPANTS",
			Subjects:  []string{"auction.registrations.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_ENTITLEMENTS",
			Subjects:  []string{"auction.entitlements.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_SETTLEMENT",
			Subjects:  []string{"auction.claims.>", "auction.burns.>", "auction.swaps.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_REVERSE",
			Subjects:  []string{"auction.reverse.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "AUCTION_RATIOS",
			Subjects:  []string{"auction.ratios.>"},
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
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
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
