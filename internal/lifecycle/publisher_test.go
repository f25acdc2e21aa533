// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/models"
)

func TestGoChannelDeliversDraftSaved(t *testing.T) {
	p := NewGoChannel(watermill.NopLogger{})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := p.Subscriber().Subscribe(ctx, TopicDraftSaved)
	if err != nil {
		t.Fatal(err)
	}

	saved := models.DraftSaved{SessionID: "s-1", Owner: "ana", DraftID: 42, Created: true, SavedAt: time.Unix(1700000000, 0).UTC()}
	p.DraftSaved(logging.ContextWithRequestID(ctx, "req-7"), saved)

	select {
	case msg := <-msgs:
		msg.Ack()
		var got models.DraftSaved
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatal(err)
		}
		if got.DraftID != 42 || !got.Created || got.Owner != "ana" || !got.SavedAt.Equal(saved.SavedAt) {
			t.Errorf("payload = %+v, want %+v", got, saved)
		}
		if msg.Metadata.Get("owner") != "ana" || msg.Metadata.Get("session_id") != "s-1" {
			t.Errorf("metadata = %v", msg.Metadata)
		}
		if msg.Metadata.Get("request_id") != "req-7" {
			t.Errorf("request id metadata = %q", msg.Metadata.Get("request_id"))
		}
		if msg.UUID == "" {
			t.Error("message without id")
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestPublishAfterClose(t *testing.T) {
	p := NewGoChannel(watermill.NopLogger{})
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check on open publisher = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	err := p.Publish(context.Background(), TopicEventSubmitted, struct{}{}, nil)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := p.Check(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Check = %v, want ErrClosed", err)
	}
	// Announcements swallow the error.
	p.EventSubmitted(context.Background(), models.EventSubmitted{SessionID: "s"})
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(config.EventsConfig{Backend: "kafka"}, "", watermill.NopLogger{}); err == nil {
		t.Error("expected error for unknown backend")
	}
	p, err := New(config.EventsConfig{}, "", watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.Backend() != "gochannel" {
		t.Errorf("default backend = %q", p.Backend())
	}
}

func TestNATSPublishesOnTopicSubject(t *testing.T) {
	srv, err := NewEmbeddedServer(-1)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	sub, err := nc.SubscribeSync(TopicEventSubmitted)
	if err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	p, err := New(config.EventsConfig{Backend: "nats", MaxReconnects: 1, ReconnectWait: time.Second}, srv.ClientURL(), watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	km := 42.17
	ev := models.EventSubmitted{
		SessionID:  "s-2",
		Owner:      "bruno",
		Event:      models.SubmittedEvent{ID: 42, Name: "Vuelta al Dique", Status: models.DraftStatusSubmitted},
		DistanceKm: &km,
	}
	p.EventSubmitted(context.Background(), ev)

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	var got models.EventSubmitted
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Event.ID != 42 || got.Owner != "bruno" || got.DistanceKm == nil || *got.DistanceKm != km {
		t.Errorf("payload = %+v", got)
	}
	if msg.Header.Get("owner") != "bruno" {
		t.Errorf("owner header = %q", msg.Header.Get("owner"))
	}
}
