// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/rodada/rodada/internal/capture"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types that are not capture notices.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one frame sent to a client.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data"`
}

type delivery struct {
	sessionID string
	msg       Message
	// last marks the final notice of a session; its clients are closed
	// once it is queued to them.
	last bool
}

// registerTimeout bounds how long a pump waits for a hub that is not
// running, e.g. while suture restarts it.
const registerTimeout = 5 * time.Second

// Hub fans session notices out to the clients watching that session.
// It implements capture.Notifier.
type Hub struct {
	sessions   map[string]map[*Client]struct{}
	deliver    chan delivery
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Run it with RunWithContext.
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		deliver:    make(chan delivery, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes registrations and deliveries until ctx ends,
// then closes every client.
//
// Shutdown is checked first, then client lifecycle, then deliveries, so a
// client registered before a notice is sent always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.Register:
			h.add(c)
			continue
		case c := <-h.Unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case d := <-h.deliver:
			h.deliverToSession(d)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.sessions[c.sessionID] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	c.logger().Debug().Int("total_clients", h.ClientCount()).Msg("Notice watcher connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	removed := h.dropLocked(c, closeGoingAway)
	h.mu.Unlock()
	if removed {
		c.logger().Debug().Int("total_clients", h.ClientCount()).Msg("Notice watcher disconnected")
	}
}

// Subscribe registers c with the running hub. It fails when ctx ends
// first, so a stopped hub never blocks the caller.
func (h *Hub) Subscribe(ctx context.Context, c *Client) error {
	select {
	case h.Register <- c:
		return nil
	case <-ctx.Done():
		metrics.WSErrors.WithLabelValues("subscribe_timeout").Inc()
		return ctx.Err()
	}
}

// unsubscribe is Unregister with a bound, for pumps of a stopped hub.
func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.Unregister <- c:
	case <-time.After(registerTimeout):
	}
}

// dropLocked forgets c and closes its send channel; the write pump then
// sends reason as the close frame. h.mu held.
func (h *Hub) dropLocked(c *Client, reason closeReason) bool {
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return false
	}
	if _, ok := clients[c]; !ok {
		return false
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	c.closeWith = reason
	close(c.send)
	metrics.WSConnections.Dec()
	return true
}

// deliverToSession sends to the session's clients in id order. Clients
// with a full buffer are dropped. After the last notice of a session every
// remaining client is closed; buffered frames are still written first.
func (h *Hub) deliverToSession(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := sortedClients(h.sessions[d.sessionID])
	for _, c := range clients {
		select {
		case c.send <- d.msg:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			h.dropLocked(c, closeSlowClient)
		}
	}
	if !d.last {
		return
	}
	watchers := sortedClients(h.sessions[d.sessionID])
	for _, c := range watchers {
		h.dropLocked(c, closeSessionEnded)
	}
	if len(watchers) > 0 {
		logging.Debug().Str("session_id", d.sessionID).Int("clients_closed", len(watchers)).Msg("Session ended, watchers closed")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	count := h.ClientCount()

	h.mu.Lock()
	for _, clients := range h.sessions {
		for _, c := range sortedClients(clients) {
			h.dropLocked(c, closeGoingAway)
		}
	}
	h.mu.Unlock()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func sortedClients(set map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Notify queues a capture notice for the session's clients. It never
// blocks: the capture engine calls it with a session lock held. A
// session_closed notice also disconnects the session's clients.
func (h *Hub) Notify(sessionID string, n capture.Notice) {
	h.queue(delivery{
		sessionID: sessionID,
		msg:       Message{Type: string(n.Kind), SessionID: sessionID, Data: n},
		last:      n.Kind == capture.NoticeSessionClosed,
	})
}

// Send queues an arbitrary message for the session's clients.
func (h *Hub) Send(sessionID, messageType string, data any) {
	h.queue(delivery{sessionID: sessionID, msg: Message{Type: messageType, SessionID: sessionID, Data: data}})
}

func (h *Hub) queue(d delivery) {
	sessionID, messageType := d.sessionID, d.msg.Type
	select {
	case h.deliver <- d:
	default:
		metrics.WSErrors.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("session_id", sessionID).Str("message_type", messageType).Msg("notice queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}

// SessionClientCount returns the number of clients watching a session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
