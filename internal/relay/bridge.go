// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/logging"
)

// Bridge feeds envelopes received from a watermill subscriber into a
// local Publisher, so every instance can deliver events for any session.
// It implements suture.Service.
type Bridge struct {
	subscriber message.Subscriber
	topic      string
	target     Publisher
	logger     zerolog.Logger
}

// NewBridge creates a Bridge that forwards messages on topic to target.
func NewBridge(sub message.Subscriber, topic string, target Publisher) *Bridge {
	return &Bridge{
		subscriber: sub,
		topic:      topic,
		target:     target,
		logger:     logging.WithComponent("relay-bridge"),
	}
}

// Serve subscribes and forwards until ctx is canceled or the subscription closes.
func (b *Bridge) Serve(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	b.logger.Info().Str("topic", b.topic).Msg("Relay bridge started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription %s closed", b.topic)
			}
			b.handle(msg)
		}
	}
}

func (b *Bridge) handle(msg *message.Message) {
	defer msg.Ack()

	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		b.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable session event")
		return
	}
	if env.SessionID == "" {
		env.SessionID = msg.Metadata.Get(MetadataSessionID)
	}
	if env.Event == "" {
		env.Event = msg.Metadata.Get(MetadataEvent)
	}
	if env.SessionID == "" || env.Event == "" {
		b.logger.Warn().Str("message_uuid", msg.UUID).Msg("Dropping session event without routing fields")
		return
	}
	b.target.Publish(env.SessionID, env.Event, env.Payload)
}

// String implements fmt.Stringer for suture logging.
func (b *Bridge) String() string {
	return "relay-bridge"
}

// Wildcard returns the core NATS subject matching every session under prefix.
func Wildcard(prefix string) string {
	if prefix == "" {
		return ">"
	}
	return prefix + ".>"
}

// NewNATSSubscriber creates a core NATS subscriber without a queue group,
// so every instance receives every event.
func NewNATSSubscriber(cfg NATSConfig) (message.Subscriber, error) {
	logger := logging.NewWatermillAdapter()

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: "",
		SubscribersCount: 1,
		AckWaitTimeout:   5 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions: []natsgo.Option{
			natsgo.Name("sessiond-bridge"),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(cfg.MaxReconnects),
			natsgo.ReconnectWait(cfg.ReconnectWait),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	logger.Debug("NATS subscriber ready", watermill.LogFields{"url": cfg.URL})
	return sub, nil
}
