// Package hub fans protocol frames out to connected players.
//
// Every client gets a buffered outbound queue drained by its own writer
// goroutine, so Broadcast and Unicast only ever enqueue and never touch the
// network. A client whose queue overflows is dropped: its connection is
// closed, which ends its read loop and triggers the normal departure path.
package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/gridclaim/game/engine"
)

// DefaultBufferSize is the outbound queue length per client.
const DefaultBufferSize = 256

// Conn is the write side of a transport connection.
type Conn interface {
	WriteFrame(frame string) error
	Close() error
}

// Client is one registered broadcast target.
type Client struct {
	id   engine.PlayerID
	conn Conn
	send chan string
	done chan struct{}
}

// ID returns the player the client belongs to.
func (c *Client) ID() engine.PlayerID { return c.id }

// Done is closed once the client's writer has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// Hub maintains the set of registered clients.
type Hub struct {
	mu         sync.RWMutex
	clients    map[engine.PlayerID]*Client
	bufferSize int
	logger     *zap.Logger
}

// NewHub creates a hub with the given per-client queue length.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[engine.PlayerID]*Client),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Register adds a broadcast target for id and starts its writer. If initial
// is not nil it is called with the hub locked against broadcasts, and the
// frames it returns are queued ahead of everything else, so they are always
// the first frames the client receives. Any broadcast the snapshot misses is
// delivered after it. initial must not call back into the hub. A previous
// client registered under the same id is dropped.
func (h *Hub) Register(id engine.PlayerID, conn Conn, initial func() []string) *Client {
	h.mu.Lock()
	var frames []string
	if initial != nil {
		frames = initial()
	}
	client := &Client{
		id:   id,
		conn: conn,
		send: make(chan string, h.bufferSize+len(frames)),
		done: make(chan struct{}),
	}
	for _, frame := range frames {
		client.send <- frame
	}

	old := h.clients[id]
	if old != nil {
		delete(h.clients, id)
		close(old.send)
	}
	h.clients[id] = client
	total := len(h.clients)
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}

	go h.writePump(client)

	h.logger.Debug("client registered", zap.String("player_id", string(id)), zap.Int("clients", total))
	return client
}

// Unregister removes the target for id. Frames already queued are still
// written before its writer exits.
func (h *Hub) Unregister(id engine.PlayerID) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("client unregistered", zap.String("player_id", string(id)), zap.Int("clients", total))
	}
}

// Broadcast enqueues frame for every registered client.
func (h *Hub) Broadcast(frame string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		h.enqueue(client, frame)
	}
}

// Unicast enqueues frame for one client. It reports false if id is not
// registered.
func (h *Hub) Unicast(id engine.PlayerID, frame string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		return false
	}
	h.enqueue(client, frame)
	return true
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unregisters every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[engine.PlayerID]*Client)
	for _, client := range clients {
		close(client.send)
	}
	h.mu.Unlock()
}

// enqueue must be called with h.mu held for reading.
func (h *Hub) enqueue(client *Client, frame string) {
	select {
	case client.send <- frame:
	default:
		h.logger.Warn("outbound queue full, dropping client", zap.String("player_id", string(client.id)))
		go h.evict(client)
	}
}

// evict drops client if it is still registered and closes its connection.
func (h *Hub) evict(client *Client) {
	h.mu.Lock()
	if h.clients[client.id] == client {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.mu.Unlock()

	client.conn.Close()
}

// writePump drains a client's queue onto its connection.
func (h *Hub) writePump(client *Client) {
	defer close(client.done)

	for frame := range client.send {
		if err := client.conn.WriteFrame(frame); err != nil {
			h.logger.Debug("write failed", zap.String("player_id", string(client.id)), zap.Error(err))
			h.evict(client)
			// evict closed the queue; discard what is left.
			for range client.send {
			}
			return
		}
	}
}
