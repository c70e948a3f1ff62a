// Package transport implements the Transport Listener (4.M): the HTTP→
// WebSocket upgrade, origin/path checks, and per-connection read/write
// pumps that hand validated frames to the Message Router.
package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// writeWait bounds how long a single WriteMessage call may block.
const writeWait = 10 * time.Second

// pongWait and pingPeriod implement the transport-level liveness check
// behind the application-level ping/pong advisory cadence (4.K: 25s).
const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// wsConnection is the subset of *websocket.Conn a Conn needs, kept as an
// interface so tests can substitute a fake without a real socket.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

var nextSocketID uint64

// Conn is one upgraded WebSocket connection. It implements room.Sender,
// relay.Connection and signaling.Conn so it can flow through every
// higher-level package without those packages importing transport.
type Conn struct {
	ws   wsConnection
	id   types.SocketID
	send chan []byte

	queuedBytes atomic.Int64

	mu       sync.RWMutex
	userID   types.UserID
	streamID types.StreamID
	role     types.RoleType
}

// newConn wraps ws with the bookkeeping state a signaling connection needs.
func newConn(ws wsConnection) *Conn {
	return &Conn{
		ws:   ws,
		id:   types.SocketID(atomic.AddUint64(&nextSocketID, 1)),
		send: make(chan []byte, 256),
	}
}

// Send implements room.Sender. Marshaling happens here so callers across
// every package (room, relay, router) only ever deal in types.Outbound.
func (c *Conn) Send(msg types.Outbound) {
	data, err := msg.MarshalJSON()
	if err != nil {
		return
	}
	c.queuedBytes.Add(int64(len(data)))

	if msg.Critical {
		// Critical messages are never dropped (4.F): block until writePump
		// drains room rather than discard under backpressure.
		c.send <- data
		return
	}

	select {
	case c.send <- data:
	default:
		// Send buffer full: drop rather than block the caller. A slow
		// consumer under sustained backpressure eventually gets closed by
		// its own writePump's write-deadline failure.
		c.queuedBytes.Add(-int64(len(data)))
	}
}

// SocketID implements router.Connection / relay identity.
func (c *Conn) SocketID() types.SocketID { return c.id }

// QueuedBytes implements relay.Connection's backpressure signal.
func (c *Conn) QueuedBytes() int { return int(c.queuedBytes.Load()) }

func (c *Conn) UserID() types.UserID { c.mu.RLock(); defer c.mu.RUnlock(); return c.userID }
func (c *Conn) SetUserID(u types.UserID) { c.mu.Lock(); defer c.mu.Unlock(); c.userID = u }

func (c *Conn) StreamID() types.StreamID { c.mu.RLock(); defer c.mu.RUnlock(); return c.streamID }
func (c *Conn) SetStreamID(s types.StreamID) { c.mu.Lock(); defer c.mu.Unlock(); c.streamID = s }

func (c *Conn) Role() types.RoleType { c.mu.RLock(); defer c.mu.RUnlock(); return c.role }
func (c *Conn) SetRole(r types.RoleType) { c.mu.Lock(); defer c.mu.Unlock(); c.role = r }

// writePump drains send to the socket and maintains the transport-level
// ping cadence that backs 4.K's heartbeat.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.queuedBytes.Add(-int64(len(data)))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeSend signals writePump to drain and close. Safe to call once.
func (c *Conn) closeSend() { close(c.send) }
