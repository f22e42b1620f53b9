package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages to
// them. Inbound client messages are handed to a single handler, set
// before Run.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	running      bool
	onMessage    func([]byte)
	onDisconnect func(remaining int)
}

// New creates a new Hub.
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// OnMessage sets the handler for text messages arriving from any client.
// Must be called before Run.
func (h *Hub) OnMessage(fn func([]byte)) {
	h.onMessage = fn
}

// OnDisconnect sets the handler called with the remaining client count
// whenever clients leave, including slow clients dropped during a
// broadcast. Must be called before Run.
func (h *Hub) OnDisconnect(fn func(remaining int)) {
	h.onDisconnect = fn
}

// Run starts the hub's main loop
// This should be called in a goroutine
func (h *Hub) Run() {
	h.running = true
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "remaining", count)
			h.notifyDisconnect(count)

		case message := <-h.broadcast:
			// Full lock: the slow-client branch mutates the map.
			h.mu.Lock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full - they're too slow
					close(client.send)
					delete(h.clients, client)
					dropped++
					h.logger.Warn("dropped slow client")
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			if dropped > 0 {
				h.notifyDisconnect(count)
			}
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// BroadcastEnvelope encodes a typed envelope and broadcasts it.
func (h *Hub) BroadcastEnvelope(typ string, payload any) error {
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return h.BroadcastJSON(env)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running.
func (h *Hub) IsRunning() bool {
	return h.running
}

func (h *Hub) receive(data []byte) {
	if h.onMessage != nil {
		h.onMessage(data)
	}
}

func (h *Hub) notifyDisconnect(remaining int) {
	if h.onDisconnect != nil {
		h.onDisconnect(remaining)
	}
}
