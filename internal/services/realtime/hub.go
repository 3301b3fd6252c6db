// Package realtime keeps the registry of identified browser connections and
// delivers typed frames to them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
)

const defaultSendBuffer = 16

// Relay forwards frames to hubs running in other processes.
type Relay interface {
	Publish(ctx context.Context, msg Relayed) error
}

// Relayed is a frame travelling between hubs. An empty Email broadcasts.
type Relayed struct {
	Origin string          `json:"origin"`
	Email  string          `json:"email,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Client is one connection. It starts anonymous and becomes addressable
// once identified with a connection key.
type Client struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once

	key   string
	email string
}

// Outbound yields the encoded frames to write to the connection.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close stops delivery to the client. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Hub is the connection registry. Keys map to exactly one client; the email
// index groups every key that belongs to one account.
type Hub struct {
	id     string
	buffer int
	relay  Relay
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	byEmail map[string]map[string]*Client
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithSendBuffer sets the per-client outbound queue length.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithRelay fans local pushes out to other processes.
func WithRelay(r Relay) HubOption {
	return func(h *Hub) { h.relay = r }
}

// NewHub creates an empty registry.
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		id:      uuid.NewString(),
		buffer:  defaultSendBuffer,
		logger:  logger,
		clients: make(map[string]*Client),
		byEmail: make(map[string]map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID identifies this hub among relayed messages.
func (h *Hub) ID() string { return h.id }

// NewClient allocates an anonymous client.
func (h *Hub) NewClient() *Client {
	return &Client{
		id:   uuid.NewString(),
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
}

// Register binds key to c. A key already bound to another client is taken
// over; a client re-identifying drops its previous key.
func (h *Hub) Register(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.register(c, key)
}

// RegisterAndSend binds key to c and queues p as the first frame the client
// sees: pushes addressed to key wait until p is queued.
func (h *Hub) RegisterAndSend(c *Client, key string, p Payload) bool {
	frame, err := Encode(p)
	if err != nil {
		h.logger.Error("encode realtime frame", zap.Error(err))
		h.Register(c, key)
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.register(c, key)
	return h.sendFrame(c, frame)
}

func (h *Hub) register(c *Client, key string) {
	if c.key != "" && c.key != key {
		h.remove(c.key, c)
	}
	if prev, ok := h.clients[key]; ok && prev != c {
		h.remove(key, prev)
	}
	c.key = key
	c.email = domain.EmailFromConnectionKey(key)
	h.clients[key] = c
	if c.email != "" {
		set := h.byEmail[c.email]
		if set == nil {
			set = make(map[string]*Client)
			h.byEmail[c.email] = set
		}
		set[key] = c
	}
}

// Unregister removes c from the registry and closes it. Only the entry that
// still points at c is removed.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if c.key != "" {
		h.remove(c.key, c)
	}
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) remove(key string, c *Client) {
	if h.clients[key] != c {
		return
	}
	delete(h.clients, key)
	if set := h.byEmail[c.email]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(h.byEmail, c.email)
		}
	}
}

// Len returns the number of identified connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send delivers p to a single client, bypassing the registry.
func (h *Hub) Send(c *Client, p Payload) bool {
	frame, err := Encode(p)
	if err != nil {
		h.logger.Error("encode realtime frame", zap.Error(err))
		return false
	}
	return h.sendFrame(c, frame)
}

// Push delivers p to every connection of email and returns how many local
// connections accepted it. Other processes receive it through the relay.
func (h *Hub) Push(email string, p Payload) int {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return 0
	}
	frame, err := Encode(p)
	if err != nil {
		h.logger.Error("encode realtime frame", zap.Error(err))
		return 0
	}
	h.publish(Relayed{Origin: h.id, Email: email, Frame: frame})
	return h.deliver(email, frame)
}

// PushLoginRequired sends the login-required notice to every connection of email.
func (h *Hub) PushLoginRequired(email string) int {
	return h.Push(email, LoginRequired())
}

// Broadcast delivers p to every identified connection.
func (h *Hub) Broadcast(p Payload) int {
	frame, err := Encode(p)
	if err != nil {
		h.logger.Error("encode realtime frame", zap.Error(err))
		return 0
	}
	h.publish(Relayed{Origin: h.id, Frame: frame})
	return h.deliver("", frame)
}

// Receive delivers a frame relayed by another process. Frames this hub
// published itself are ignored.
func (h *Hub) Receive(msg Relayed) int {
	if msg.Origin == h.id || len(msg.Frame) == 0 {
		return 0
	}
	return h.deliver(msg.Email, msg.Frame)
}

// Close closes every client and empties the registry.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.byEmail = make(map[string]map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) deliver(email string, frame []byte) int {
	h.mu.RLock()
	var targets []*Client
	if email == "" {
		targets = make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			targets = append(targets, c)
		}
	} else {
		for _, c := range h.byEmail[email] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if h.sendFrame(c, frame) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) sendFrame(c *Client, frame []byte) bool {
	if c.enqueue(frame) {
		return true
	}
	h.logger.Warn("realtime frame dropped", zap.String("client", c.id))
	return false
}

func (h *Hub) publish(msg Relayed) {
	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(context.Background(), msg); err != nil {
		h.logger.Warn("realtime relay publish failed", zap.Error(err))
	}
}
