// Package ws fans session state out to WebSocket subscribers: one full
// snapshot on connect, then typed delta envelopes as the pipeline applies
// updates. Slow subscribers are evicted rather than ever blocking the
// pipeline.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/metrics"
)

// SnapshotSource supplies the initial frame for a new subscriber.
type SnapshotSource interface {
	SnapshotJSON() ([]byte, error)
}

// Envelope is the wire shape of every post-snapshot frame.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub owns the subscriber registry. Register, unregister, and broadcast
// are guarded by the hub's own lock, separate from the store's.
type Hub struct {
	source   SnapshotSource
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(source SnapshotSource, log zerolog.Logger) *Hub {
	return &Hub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log.With().Str("component", "ws").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request, queues the full state snapshot as the
// subscriber's first frame, and registers it for broadcasts.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.source.SnapshotJSON()
	if err != nil {
		h.log.Error().Err(err).Msg("snapshot serialization failed")
		http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	c.send <- snap

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Str("remote", r.RemoteAddr).Int("subscribers", n).Msg("subscriber connected")

	go c.writePump()
	go c.readPump()
}

// Broadcast serializes a {type, data} envelope once and delivers it to
// every registered subscriber.
func (h *Hub) Broadcast(eventType string, data any) {
	payload, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("envelope marshal failed")
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(eventType).Inc()
	h.fanOut(payload)
}

// BroadcastJSON delivers an already-shaped value without an envelope; the
// pipeline uses it for the full-state frame that follows a snapshot.
func (h *Hub) BroadcastJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("state marshal failed")
		return
	}
	metrics.BroadcastsTotal.WithLabelValues("FullState").Inc()
	h.fanOut(payload)
}

func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			// the queue is full, the subscriber is not keeping up
			h.log.Warn().Msg("subscriber queue overflow, evicting")
			metrics.SubscribersEvictedTotal.Inc()
			h.remove(c)
		}
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// remove unregisters a client and signals its pumps to stop.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// Close evicts every subscriber; used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	h.log.Info().Int("subscribers", len(clients)).Msg("hub closed")
}
