// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Control message types. Session events use the event name as the type.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the wire form of one delivered event.
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type delivery struct {
	sessionID string
	msg       Message
}

// Hub routes session events to the clients subscribed to each session.
type Hub struct {
	sessions   map[string]map[*Client]struct{}
	broadcast  chan delivery
	Register   chan *Client
	Unregister chan *Client
	terminal   map[string]struct{}
	mu         sync.RWMutex
}

// NewHub creates a Hub. Subscribers of a session are closed after any of
// terminalEvents is delivered to them.
func NewHub(terminalEvents ...string) *Hub {
	terminal := make(map[string]struct{}, len(terminalEvents))
	for _, e := range terminalEvents {
		terminal[e] = struct{}{}
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		broadcast:  make(chan delivery, 1024),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		terminal:   terminal,
	}
}

// Publish implements relay.Publisher. It never blocks; events are dropped
// when the hub is saturated.
func (h *Hub) Publish(sessionID, event string, payload any) {
	d := delivery{
		sessionID: sessionID,
		msg: Message{
			Type:      event,
			SessionID: sessionID,
			Data:      payload,
			Timestamp: time.Now().UTC(),
		},
	}
	select {
	case h.broadcast <- d:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().
			Str("session_id", sessionID).
			Str("event", event).
			Msg("websocket broadcast channel full, dropping event")
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every client.
// Shutdown is checked first, then registration, then delivery.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	subs, ok := h.sessions[c.sessionID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.sessions[c.sessionID] = subs
	}
	subs[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("session_id", c.sessionID).
		Int("total_clients", total).
		Msg("websocket client subscribed")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := h.countLocked()
	h.mu.Unlock()

	if removed {
		logging.Info().
			Str("session_id", c.sessionID).
			Int("total_clients", total).
			Msg("websocket client unsubscribed")
	}
}

// removeLocked drops c and closes its send channel. It reports whether c was subscribed.
func (h *Hub) removeLocked(c *Client) bool {
	subs, ok := h.sessions[c.sessionID]
	if !ok {
		return false
	}
	if _, ok := subs[c]; !ok {
		return false
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.sessions, c.sessionID)
	}
	close(c.send)
	metrics.WSConnections.Dec()
	return true
}

func (h *Hub) countLocked() int {
	n := 0
	for _, subs := range h.sessions {
		n += len(subs)
	}
	return n
}

// sortedLocked returns the clients of sessionID in id order.
func (h *Hub) sortedLocked(sessionID string) []*Client {
	subs := h.sessions[sessionID]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// deliver sends d to its session's clients in id order. Slow clients are dropped.
func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, terminal := h.terminal[d.msg.Type]
	for _, c := range h.sortedLocked(d.sessionID) {
		select {
		case c.send <- d.msg:
		default:
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			logging.Warn().Str("session_id", d.sessionID).Uint64("client_id", c.id).Msg("websocket client too slow, dropping")
			h.removeLocked(c)
			continue
		}
		if terminal {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, c := range h.sortedLocked(id) {
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// SessionClientCount returns the number of clients subscribed to sessionID.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string {
	return "websocket-hub"
}
