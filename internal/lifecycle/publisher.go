// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/rodada/rodada/internal/breaker"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
)

// Topics of the lifecycle events.
const (
	TopicDraftSaved     = "rodada.drafts.saved"
	TopicEventSubmitted = "rodada.events.submitted"
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("publisher is closed")

// Publisher announces draft and event lifecycle changes. It implements
// capture.Announcer; publish failures are logged and counted only.
type Publisher struct {
	mu      sync.RWMutex
	pub     message.Publisher
	sub     message.Subscriber
	breaker *breaker.Breaker
	closed  bool
	backend string
}

// New builds a publisher for cfg.Backend. url overrides cfg.NATSURL, e.g.
// with the client URL of an embedded server.
func New(cfg config.EventsConfig, url string, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger("lifecycle")
	}
	switch cfg.Backend {
	case "", "gochannel":
		return NewGoChannel(logger), nil
	case "nats":
		if url == "" {
			url = cfg.NATSURL
		}
		return NewNATS(url, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NewGoChannel publishes in-process. Subscriber returns the matching
// subscriber for local consumers.
func NewGoChannel(logger watermill.LoggerAdapter) *Publisher {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return &Publisher{pub: ch, sub: ch, backend: "gochannel", breaker: newBreaker()}
}

// NewNATS publishes on core NATS subjects named after the topics.
func NewNATS(url string, cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("rodada-lifecycle"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &Publisher{pub: pub, backend: "nats", breaker: newBreaker()}, nil
}

func newBreaker() *breaker.Breaker {
	return breaker.New("lifecycle-publisher", breaker.Settings{})
}

// Backend names the transport in use.
func (p *Publisher) Backend() string { return p.backend }

// Subscriber returns the in-process subscriber, or nil for NATS.
func (p *Publisher) Subscriber() message.Subscriber { return p.sub }

// Publish marshals payload as JSON and sends it on topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any, meta map[string]string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	for k, v := range meta {
		msg.Metadata.Set(k, v)
	}
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		msg.Metadata.Set("request_id", rid)
	}

	_, err = breaker.Execute(p.breaker, func() (struct{}, error) {
		return struct{}{}, p.pub.Publish(topic, msg)
	})
	metrics.RecordEventPublished(topic, err)
	return err
}

// DraftSaved announces a successful autosave.
func (p *Publisher) DraftSaved(ctx context.Context, e models.DraftSaved) {
	p.announce(ctx, TopicDraftSaved, e, e.SessionID, e.Owner)
}

// EventSubmitted announces a finalized event.
func (p *Publisher) EventSubmitted(ctx context.Context, e models.EventSubmitted) {
	p.announce(ctx, TopicEventSubmitted, e, e.SessionID, e.Owner)
}

func (p *Publisher) announce(ctx context.Context, topic string, payload any, sessionID, owner string) {
	err := p.Publish(ctx, topic, payload, map[string]string{
		"session_id": sessionID,
		"owner":      owner,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Failed to publish lifecycle event")
	}
}

// Check reports whether events can currently be published. Used by the
// readiness check.
func (p *Publisher) Check(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.breaker.IsOpen() {
		return fmt.Errorf("%s publisher circuit open", p.backend)
	}
	return nil
}

// Close shuts the transport down. Safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}
