// Package ws implements the live-subscriber fan-out channel. Each connected
// client receives a JSON envelope for every alert broadcast; clients whose
// delivery fails are pruned from the live set.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/metrics"
	"github.com/envmonitor/envmonitor/internal/model"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing buffer depth. A client that
	// cannot drain this many pending broadcasts is dropped.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy in this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope is the JSON wrapper pushed to every subscriber on broadcast.
type Envelope struct {
	Type          string      `json:"type"`
	Data          model.Alert `json:"data"`
	BroadcastTime string      `json:"broadcast_time"`
}

// Hub tracks live subscribers and broadcasts alerts to all of them. The
// client set is owned by the hub and guarded by one mutex; there is no
// process-wide registry.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	now     func() time.Time // injectable for deterministic tests
}

// client is one live subscriber: an ephemeral identity plus a buffered
// send channel drained by its write pump. The send channel is never closed;
// the done channel signals the pumps to stop.
type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

// stop tears the connection down; safe to call from any goroutine, any
// number of times.
func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		now:     time.Now,
	}
}

// Run blocks until ctx is cancelled, then closes every live connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the request to a WebSocket subscription and serves it
// until either side closes. Inbound frames are drained and ignored except
// as liveness traffic.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	log := logger.WithComponent("ws")
	log.Info().Str("subscriber", c.id).Int("live", h.Count()).Msg("subscriber connected")

	go c.writePump()
	c.readPump() // blocks until the connection closes

	log.Info().Str("subscriber", c.id).Msg("subscriber disconnected")
}

// Broadcast wraps the alert in an envelope and attempts delivery to every
// live subscriber. Subscribers whose delivery fails are collected and
// unregistered after the pass: when Broadcast returns, no failed subscriber
// remains in the live set.
func (h *Hub) Broadcast(alert model.Alert) {
	env := Envelope{
		Type:          "alert",
		Data:          alert,
		BroadcastTime: h.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(env)
	if err != nil {
		wsLog := logger.WithComponent("ws")
		wsLog.Error().Err(err).Msg("encode broadcast envelope")
		return
	}

	metrics.BroadcastsTotal.Inc()

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var dead []*client
	for _, c := range targets {
		select {
		case c.send <- data:
		case <-c.done:
			dead = append(dead, c)
		default:
			// Buffer full: the subscriber stopped draining.
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		metrics.BroadcastSendFailures.Inc()
		wsLog := logger.WithComponent("ws")
		wsLog.Warn().Str("subscriber", c.id).Msg("dropping unresponsive subscriber")
		h.unregister(c)
	}
}

// Count returns the number of currently live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// register adds a subscriber; no-op if it is already present.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	metrics.LiveSubscribers.Set(float64(len(h.clients)))
}

// unregister removes a subscriber and tears its connection down; idempotent.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.LiveSubscribers.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()
	c.stop()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.stop()
	}
	metrics.LiveSubscribers.Set(0)
}

// writePump drains the send channel to the connection and emits periodic
// ping frames. Runs in its own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes frames to process pong/close control messages and
// detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.stop()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
