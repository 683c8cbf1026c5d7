package realtime

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWire records frames written to a connection.
type fakeWire struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeWire) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		buf := make([]byte, len(data))
		copy(buf, data)
		f.frames = append(f.frames, buf)
	}
	return nil
}

func (f *fakeWire) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWire) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeWire) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub() *Hub {
	return NewHub(testLogger())
}

func TestHubSendReachesBoundConn(t *testing.T) {
	hub := testHub()
	wire := &fakeWire{}
	conn := NewConn(7, wire)
	t.Cleanup(conn.Close)

	hub.Bind(conn)

	require.True(t, hub.Send(7, []byte(`{"type":"match.created"}`)))
	require.Eventually(t, func() bool {
		return wire.frameCount() == 1
	}, time.Second, 10*time.Millisecond)

	// nobody home for user 8
	assert.False(t, hub.Send(8, []byte("x")))
}

func TestHubRebindClosesOldConn(t *testing.T) {
	hub := testHub()

	oldWire := &fakeWire{}
	oldConn := NewConn(7, oldWire)
	hub.Bind(oldConn)

	newWire := &fakeWire{}
	newConn := NewConn(7, newWire)
	t.Cleanup(newConn.Close)
	hub.Bind(newConn)

	require.Eventually(t, oldWire.isClosed, time.Second, 10*time.Millisecond)

	// traffic flows to the new connection only
	require.True(t, hub.Send(7, []byte("hello")))
	require.Eventually(t, func() bool {
		return newWire.frameCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, oldWire.frameCount())
}

func TestHubReleaseIgnoresStaleConnID(t *testing.T) {
	hub := testHub()

	conn := NewConn(7, &fakeWire{})
	t.Cleanup(conn.Close)
	hub.Bind(conn)

	// a stale disconnect for a previous connection must not unbind
	hub.Release(7, "some-old-conn-id")
	_, ok := hub.Get(7)
	assert.True(t, ok)

	hub.Release(7, conn.ID)
	_, ok = hub.Get(7)
	assert.False(t, ok)
}

func TestConnDropsWhenBufferFull(t *testing.T) {
	// an unstarted writer never drains, so the buffer fills and the
	// overflow frame is dropped rather than blocking the sender
	c := &Conn{
		ID:     "c1",
		UserID: 7,
		ws:     &fakeWire{},
		send:   make(chan []byte, 2),
		done:   make(chan struct{}),
	}

	assert.True(t, c.enqueue([]byte("1")))
	assert.True(t, c.enqueue([]byte("2")))
	assert.False(t, c.enqueue([]byte("3")), "overflow is dropped")

	close(c.done)
	assert.False(t, c.enqueue([]byte("4")), "closed conn drops")
}
