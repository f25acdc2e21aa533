// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// closeReason is the close frame a watcher receives when the hub drops it.
type closeReason struct {
	code int
	text string
}

var (
	closeGoingAway    = closeReason{websocket.CloseGoingAway, "server going away"}
	closeSlowClient   = closeReason{websocket.ClosePolicyViolation, "too slow to keep up"}
	closeSessionEnded = closeReason{websocket.CloseNormalClosure, "session closed"}
)

// clientIDCounter orders clients for deterministic delivery.
var clientIDCounter atomic.Uint64

// Client is one websocket connection watching one capture session.
type Client struct {
	id        uint64
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message

	// closeWith is set by the hub before send is closed.
	closeWith closeReason
}

// NewClient creates a client for sessionID.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		sessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, 64),
	}
}

// ID returns the client's ordering id.
func (c *Client) ID() uint64 { return c.id }

// SessionID returns the watched session.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) logger() *zerolog.Logger {
	l := logging.With().
		Str("component", "notice-watcher").
		Str("session_id", c.sessionID).
		Uint64("client_id", c.id).
		Logger()
	return &l
}

// readPump answers browser pings until the connection drops, then leaves
// the hub. Any frame other than ping is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unsubscribe(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger().Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				c.logger().Warn().Err(err).Msg("Watcher closed unexpectedly")
			}
			return
		}
		if msg.Type != MessageTypePing {
			continue
		}
		select {
		case c.send <- Message{Type: MessageTypePong, SessionID: c.sessionID}:
		default:
		}
	}
}

// writePump writes queued messages and keepalive pings. When the hub
// closes send it writes the recorded close frame and hangs up.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			deadline := time.Now().Add(writeWait)
			if !ok {
				reason := c.closeWith
				if reason.code == 0 {
					reason = closeGoingAway
				}
				_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(reason.code, reason.text), deadline)
				c.logger().Debug().Int("close_code", reason.code).Str("close_reason", reason.text).Msg("Watcher released")
				return
			}
			data, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				c.logger().Error().Err(err).Str("message_type", message.Type).Msg("Failed to encode notice")
				continue
			}
			if err := c.conn.SetWriteDeadline(deadline); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
