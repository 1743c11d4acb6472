// Package event implements the admin-observability push feed: the teacher's
// desktop-UI broadcaster (one interface, a websocket implementation and a
// Wails-runtime one) adapted to a single websocket-backed implementation for
// the admin HTTP surface's /admin/events route.
package event

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/awsl-project/antigravity-relay/internal/logging"
)

var log = logging.New("Broadcaster")

// AttemptEvent mirrors one dispatch attempt, pushed live to admin observers.
type AttemptEvent struct {
	AccountEmail string `json:"accountEmail"`
	Model        string `json:"model"`
	Endpoint     string `json:"endpoint"`
	StatusCode   int    `json:"statusCode"`
	ErrorKind    string `json:"errorKind,omitempty"`
	DurationMs   int64  `json:"durationMs"`
}

// RateLimitEvent reports an account transitioning into or out of a
// rate-limited state for a model.
type RateLimitEvent struct {
	AccountEmail string `json:"accountEmail"`
	Model        string `json:"model"`
	Limited      bool   `json:"limited"`
	ResetAtMs    int64  `json:"resetAtMs,omitempty"`
}

// Broadcaster fans observability events out to every connected admin client.
// WebSocket is the only production implementation; tests can use NopBroadcaster.
type Broadcaster interface {
	BroadcastAttempt(evt AttemptEvent)
	BroadcastRateLimit(evt RateLimitEvent)
	BroadcastLog(message string)
	BroadcastMessage(messageType string, data interface{})
}

// NopBroadcaster discards every event; used where no admin feed is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastAttempt(AttemptEvent)        {}
func (NopBroadcaster) BroadcastRateLimit(RateLimitEvent)    {}
func (NopBroadcaster) BroadcastLog(string)                  {}
func (NopBroadcaster) BroadcastMessage(string, interface{}) {}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WSBroadcaster fans events out to every connected /admin/events websocket
// client. Writes are serialized per-client via each client's own mutex so
// concurrent broadcasts never interleave a single client's frames.
type WSBroadcaster struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSBroadcaster() *WSBroadcaster {
	return &WSBroadcaster{clients: make(map[*wsClient]struct{})}
}

// Register adds conn to the broadcast set and returns a function to remove
// it again; callers should defer the returned function and read (discarding)
// incoming frames until the connection closes, per gorilla/websocket's
// read-pump convention.
func (b *WSBroadcaster) Register(conn *websocket.Conn) func() {
	c := &wsClient{conn: conn}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.clients, c)
		b.mu.Unlock()
	}
}

func (b *WSBroadcaster) send(env envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		c.mu.Lock()
		if err := c.conn.WriteJSON(env); err != nil {
			log.Warnf("dropping slow/closed admin client: %v", err)
		}
		c.mu.Unlock()
	}
}

func (b *WSBroadcaster) BroadcastAttempt(evt AttemptEvent) {
	b.send(envelope{Type: "attempt", Data: evt})
}

func (b *WSBroadcaster) BroadcastRateLimit(evt RateLimitEvent) {
	b.send(envelope{Type: "rate_limit", Data: evt})
}

func (b *WSBroadcaster) BroadcastLog(message string) {
	b.send(envelope{Type: "log", Data: message})
}

func (b *WSBroadcaster) BroadcastMessage(messageType string, data interface{}) {
	b.send(envelope{Type: messageType, Data: data})
}
