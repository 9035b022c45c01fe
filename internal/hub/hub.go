package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/creceideas/muralla/internal/domain"
)

// defaultSendBuffer is the per-client outbound queue depth. A client that
// falls this far behind starts losing events and must resynchronize from a
// snapshot on its next reconnect.
const defaultSendBuffer = 16

// Client is one registered display connection. The transport layer drains
// Send and writes each marshaled event to the wire.
type Client struct {
	send      chan []byte
	closeOnce sync.Once
}

// Send returns the channel of marshaled events queued for this client.
// The channel is closed when the client is unregistered.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks the set of connected display clients and fans events out to
// all of them. Delivery is fire-and-forget and at-most-once: there is no
// backlog, no replay, and no acknowledgment. A freshly registered client
// receives only events published after registration; its initial state
// must come from a separate snapshot fetch.
//
// Hub is safe for concurrent use. It holds no persistent state and starts
// empty on every process restart.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a new client to the broadcast set and returns its handle.
// Returns nil if the hub has been stopped.
func (h *Hub) Register() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}

	c := &Client{send: make(chan []byte, defaultSendBuffer)}
	h.clients[c] = struct{}{}
	h.logger.Info("display client connected", "clients", len(h.clients))
	return c
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once and safe to race with Publish.
func (h *Hub) Unregister(c *Client) {
	if c == nil {
		return
	}

	h.mu.Lock()
	_, registered := h.clients[c]
	delete(h.clients, c)
	remaining := len(h.clients)
	h.mu.Unlock()

	c.close()
	if registered {
		h.logger.Info("display client disconnected", "clients", remaining)
	}
}

// Publish marshals the event once and queues it on every registered
// client. A client whose queue is full is skipped: one stalled display
// must never delay the others. Events are queued under the hub lock, so
// every client observes publishes in the same order.
func (h *Hub) Publish(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		h.logger.Warn("dropped event for slow clients",
			"type", event.Type,
			"dropped", dropped,
			"clients", len(h.clients),
		)
	}
}

// Stop unregisters every client and rejects further registrations. Used
// during graceful shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("broadcast hub stopped", "clients_closed", len(clients))
}

// Len returns the number of currently registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
