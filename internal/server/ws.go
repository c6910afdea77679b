package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/pkoukos/argus/internal/state"
)

const wsWriteTimeout = 10 * time.Second

// wsFrame is the envelope every client message rides in.
type wsFrame struct {
	Type string `json:"type"` // full_state | alert
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected WebSocket clients and fans state frames out to them.
// Slow clients get dropped rather than backing up the broadcast.
type Hub struct {
	store *state.Store
	log   zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(store *state.Store, log zerolog.Logger) *Hub {
	return &Hub{
		store:   store,
		log:     log.With().Str("component", "ws").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWS upgrades and registers a client, sending the full state snapshot
// immediately.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is handled at the router
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("WebSocket accept failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", n).Msg("WebSocket client connected")

	if frame, err := h.stateFrame(); err == nil {
		select {
		case client.send <- frame:
		default:
		}
	}

	go h.writeLoop(client)
	h.readLoop(r.Context(), client)
}

// writeLoop drains the send channel into the socket.
func (h *Hub) writeLoop(c *wsClient) {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			h.drop(c)
			return
		}
	}
}

// readLoop consumes (and discards) client frames to keep the connection's
// control traffic flowing; returning drops the client.
func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info().Int("clients", n).Msg("WebSocket client dropped")
}

func (h *Hub) stateFrame() ([]byte, error) {
	snap, err := h.store.Clone()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsFrame{Type: "full_state", Data: snap})
}

// BroadcastState pushes the current snapshot to every client. Called after
// each refresh cycle and after every mutating API call.
func (h *Hub) BroadcastState() {
	frame, err := h.stateFrame()
	if err != nil {
		h.log.Warn().Err(err).Msg("State frame build failed")
		return
	}
	h.broadcast(frame)
}

// BroadcastAlert pushes an alert frame.
func (h *Hub) BroadcastAlert(data any) {
	frame, err := json.Marshal(wsFrame{Type: "alert", Data: data})
	if err != nil {
		return
	}
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Client buffer full: drop it rather than stall the cycle.
			delete(h.clients, c)
			close(c.send)
			go c.conn.Close(websocket.StatusPolicyViolation, "slow consumer")
		}
	}
}

// Clients returns the live connection count.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		go c.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}
