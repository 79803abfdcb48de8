package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func newClient(conn *websocket.Conn, b *Broadcaster) *client {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

// writePump drains the send queue; a write error means the peer is gone, so
// the client deregisters itself.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans each published result out to every connected websocket
// client, privacy filter applied. New clients immediately receive the latest
// result so they never start from an empty screen.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	latest   func() (session.SessionsResult, bool)
	privacy  *session.PrivacyFilter
	maxConns int
}

// NewBroadcaster builds a broadcaster over the latest-result source.
// maxConns of 0 means unlimited.
func NewBroadcaster(latest func() (session.SessionsResult, bool), privacy *session.PrivacyFilter, maxConns int) *Broadcaster {
	if privacy == nil {
		privacy = &session.PrivacyFilter{}
	}
	return &Broadcaster{
		clients:  make(map[*client]bool),
		latest:   latest,
		privacy:  privacy,
		maxConns: maxConns,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	var snapshot []byte
	if res, ok := b.latest(); ok {
		snapshot, _ = json.Marshal(WSMessage{
			Type:    MsgSessions,
			Payload: SessionsPayload{Result: b.privacy.FilterResult(res)},
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		return nil, ErrTooManyConnections
	}
	c := newClient(conn, b)
	b.clients[c] = true

	if snapshot != nil {
		select {
		case c.send <- snapshot:
		default:
			// Client too slow, drop the snapshot
		}
	}

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// BroadcastResult pushes a freshly published result to all clients. Wired
// as an engine subscriber, so it runs once per poll pass.
func (b *Broadcaster) BroadcastResult(res session.SessionsResult) {
	b.broadcast(WSMessage{
		Type:    MsgSessions,
		Payload: SessionsPayload{Result: b.privacy.FilterResult(res)},
	})
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[httpapi] broadcast marshal error: %v", err)
		return
	}

	// Sends happen under the read lock so a concurrent RemoveClient cannot
	// close a channel mid-send; removal waits for the write lock.
	b.mu.RLock()
	var slow []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		// Client can't keep up, disconnect it
		log.Printf("[httpapi] ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
