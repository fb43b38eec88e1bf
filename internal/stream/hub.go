package stream

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulse_relay/internal/metrics"
)

// DefaultClientBuffer is the number of frames queued per subscriber before
// further frames are dropped for that subscriber.
const DefaultClientBuffer = 64

// Client is one subscriber stream. The pointer itself is the registry key.
type Client struct {
	ID   uuid.UUID
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Frames delivers queued payloads to the transport writer.
func (c *Client) Frames() <-chan []byte {
	return c.send
}

// Done is closed once the client has been unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Hub tracks subscriber streams and fans payloads out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	buffer  int
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewHub(buffer int, log *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		buffer:  buffer,
		log:     log,
		metrics: m,
	}
}

// NewClient allocates a client with the hub's buffer size. It is not
// registered until Register is called.
func (h *Hub) NewClient() *Client {
	return &Client{
		ID:   uuid.New(),
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.log.Debugw("subscriber registered", "client", c.ID, "subscribers", n)
}

// Unregister removes c. Calling it again, or for a client that was never
// registered, does nothing.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.once.Do(func() { close(c.done) })
	h.metrics.SetSubscribers(n)
	h.log.Debugw("subscriber unregistered", "client", c.ID, "subscribers", n)
}

// Broadcast queues msg for every registered client. It never blocks: a client
// whose buffer is full misses this frame and the others are unaffected.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			h.metrics.FrameDropped()
			h.log.Debugw("client buffer full, dropping frame", "client", c.ID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
