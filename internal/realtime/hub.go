// Package realtime pushes chat events to connected websocket clients. All
// connections belong to the single global "ChatRoom" group; a broadcast
// reaches every connected client. Delivery is fire-and-forget: the broker
// feeding the bridge is at-least-once, so clients must render duplicates
// idempotently, and a slow client is disconnected rather than allowed to
// stall the fan-out.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// GroupChatRoom is the only broadcast group.
const GroupChatRoom = "ChatRoom"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client outbound queue; a client that falls this
	// far behind is dropped.
	sendBuffer = 64
)

// frame is the JSON envelope pushed to clients.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns the set of connected clients and fans broadcast frames out to
// them. It is safe for concurrent use.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The chat room is public; origin policy is enforced upstream by CORS.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast sends an event frame to every connected client. Clients whose
// send queue is full are disconnected.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast frame")
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow client")
			h.remove(c)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a websocket connection and joins it to
// the chat room group until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	go c.writePump()
	go h.readPump(c)
}

// remove unregisters a client and shuts its connection down. Safe to call
// more than once per client, and concurrently with Broadcast.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	c.shutdown()
	if ok {
		h.log.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("client disconnected")
	}
}

// readPump drains inbound frames (clients send nothing meaningful; reads
// exist to observe pongs and disconnects) until the connection errors.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// client is one websocket connection with its outbound queue. The send
// channel is never closed: Broadcast may still hold a reference to a client
// another goroutine is unregistering, and a send on a closed channel panics.
// Teardown is signalled through done instead; frames queued after shutdown
// sit in the buffer and are discarded with the client.
type client struct {
	conn *websocket.Conn
	send chan []byte

	done chan struct{}
	once sync.Once
}

// shutdown signals writePump to finish and closes the connection, which also
// unblocks readPump. Idempotent and safe from any goroutine.
func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump serializes all writes for a connection and keeps it alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
