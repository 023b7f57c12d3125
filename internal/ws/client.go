package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping interval; must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// Inbound frames are discarded, so a small limit suffices.
	maxMessageSize = 4 * 1024

	// Outbound frames buffered per subscriber before eviction.
	sendBufferSize = 256
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done     chan struct{}
	stopOnce sync.Once
}

// stop signals both pumps to exit. Safe to call more than once and from
// any goroutine; the send queue itself is never closed.
func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readPump drains inbound traffic for liveness only. Subscribers have
// nothing to say; any read error unregisters the client.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings. A failed write unregisters the client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.remove(c)
		c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
