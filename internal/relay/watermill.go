// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package relay

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/breaker"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// Message metadata keys set on every published message.
const (
	MetadataSessionID = "session_id"
	MetadataEvent     = "event"
)

// WatermillPublisher forwards session events to a watermill publisher.
// Each session gets its own topic, <prefix>.<sessionID>.
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
	sink      string
	cb        *breaker.CircuitBreaker
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWatermillPublisher wraps pub. sink labels metrics and logs.
func NewWatermillPublisher(pub message.Publisher, prefix, sink string) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: pub,
		prefix:    strings.TrimSuffix(prefix, "."),
		sink:      sink,
		cb: breaker.New(breaker.Config{
			Name:             "relay-" + sink,
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		}),
		logger: logging.WithComponent("relay").With().Str("sink", sink).Logger(),
	}
}

// Topic returns the topic used for sessionID.
func (p *WatermillPublisher) Topic(sessionID string) string {
	if p.prefix == "" {
		return sessionID
	}
	return p.prefix + "." + sessionID
}

// Publish implements Publisher.
func (p *WatermillPublisher) Publish(sessionID, event string, payload any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	data, err := json.Marshal(NewEnvelope(sessionID, event, payload))
	if err != nil {
		p.logger.Error().Err(err).Str("session_id", sessionID).Str("event", event).Msg("Failed to encode session event")
		metrics.RecordRelayPublish(p.sink, err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataSessionID, sessionID)
	msg.Metadata.Set(MetadataEvent, event)

	topic := p.Topic(sessionID)
	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	metrics.RecordRelayPublish(p.sink, err)
	if err != nil {
		p.logger.Warn().Err(err).Str("session_id", sessionID).Str("event", event).Str("topic", topic).Msg("Failed to publish session event")
	}
}

// Close closes the underlying publisher.
func (p *WatermillPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// NATSConfig configures the NATS relay.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	ReconnectWait time.Duration
	MaxReconnects int
}

// NewNATSPublisher creates a WatermillPublisher over core NATS.
// JetStream is disabled: session events are live notifications, not a log.
func NewNATSPublisher(cfg NATSConfig) (*WatermillPublisher, error) {
	logger := logging.NewWatermillAdapter()

	natsOpts := []natsgo.Option{
		natsgo.Name("sessiond"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	return NewWatermillPublisher(pub, cfg.SubjectPrefix, "nats"), nil
}
