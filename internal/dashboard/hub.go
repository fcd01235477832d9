package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/observe"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// MessageType tags websocket messages.
type MessageType string

const (
	MessageState    MessageType = "state"
	MessageChange   MessageType = "change"
	MessageSnapshot MessageType = "snapshot"
)

// Message is one websocket frame.
type Message struct {
	Type MessageType `json:"type"`
	At   time.Time   `json:"at"`
	Data any         `json:"data"`
}

// client is one connected renderer.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans state updates out to websocket clients. It implements
// engine.Listener so emotion changes reach renderers without waiting for
// the next periodic push.
type Hub struct {
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// renderers are served from other local origins
				return true
			},
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("websocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info().Msg("websocket hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug().Str("client", c.id).Msg("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug().Str("client", c.id).Msg("client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error().Err(err).Str("type", string(msg.Type)).Msg("marshaling message")
				continue
			}

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// slow client: drop it rather than stall everyone
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue
// is full the message is dropped and the next periodic push catches up.
func (h *Hub) Broadcast(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug().Str("type", string(msg.Type)).Msg("broadcast queue full, dropping")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmotionChanged implements engine.Listener.
func (h *Hub) EmotionChanged(ch engine.Change) {
	h.Broadcast(Message{Type: MessageChange, At: ch.At, Data: ch})
}

// ObservationRecorded implements engine.Listener.
func (h *Hub) ObservationRecorded(observe.Observation, bool) {}

// SnapshotCaptured implements engine.Listener.
func (h *Hub) SnapshotCaptured(s engine.Snapshot) {
	h.Broadcast(Message{Type: MessageSnapshot, At: s.CapturedAt, Data: s})
}

// ServeWs upgrades the request and streams messages to it.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and notices when the peer goes away.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps messages from the hub to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
