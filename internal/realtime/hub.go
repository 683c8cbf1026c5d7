package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wire is the transport a Conn writes to. *websocket.Conn satisfies it;
// tests plug in a recorder.
type wire interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const (
	writeWait = 10 * time.Second

	// sendBuffer bounds queued frames per connection. Overflow drops the
	// frame: delivery is best-effort by contract.
	sendBuffer = 32
)

// Conn is one live client connection. All writes go through a single
// writer goroutine so frames for a recipient keep their publish order.
type Conn struct {
	ID     string
	UserID uint64

	ws      wire
	send    chan []byte
	closing sync.Once
	done    chan struct{}
}

// NewConn wraps a websocket connection for the hub and starts its writer.
func NewConn(userID uint64, ws wire) *Conn {
	c := &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if wsc, ok := c.ws.(*websocket.Conn); ok {
				_ = wsc.SetWriteDeadline(time.Now().Add(writeWait))
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue hands a frame to the writer, dropping on a full buffer or a
// closed connection.
func (c *Conn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Done closes when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closing.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Hub is the per-process connection table: userID -> live Conn.
// One connection per user per process; a rebind closes the previous one.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uint64]*Conn
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uint64]*Conn),
		logger: logger,
	}
}

// Bind registers the connection as the user's live one, replacing and
// closing any previous connection (last-writer-wins, like the shared
// presence entry).
func (h *Hub) Bind(c *Conn) {
	h.mu.Lock()
	old := h.conns[c.UserID]
	h.conns[c.UserID] = c
	h.mu.Unlock()

	if old != nil && old.ID != c.ID {
		old.Close()
	}
	h.logger.Debug("connection bound", "user_id", c.UserID, "conn_id", c.ID)
}

// Release removes the user's connection, but only if it is still the one
// identified by connID. A stale disconnect after a reconnect is a no-op.
func (h *Hub) Release(userID uint64, connID string) {
	h.mu.Lock()
	c, ok := h.conns[userID]
	if ok && c.ID == connID {
		delete(h.conns, userID)
	} else {
		c = nil
	}
	h.mu.Unlock()

	if c != nil {
		c.Close()
		h.logger.Debug("connection released", "user_id", userID, "conn_id", connID)
	}
}

// Get returns the user's live connection, if any.
func (h *Hub) Get(userID uint64) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[userID]
	return c, ok
}

// Send delivers a frame to the user's local connection. Returns false
// when the user is not connected to this process or the frame was
// dropped; both are expected, not errors.
func (h *Hub) Send(userID uint64, msg []byte) bool {
	c, ok := h.Get(userID)
	if !ok {
		return false
	}
	return c.enqueue(msg)
}
