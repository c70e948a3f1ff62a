package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// fakeWS is a wsConnection test double: reads are served from a queue,
// writes are recorded, and Close is observable.
type fakeWS struct {
	mu      sync.Mutex
	reads   [][]byte
	readErr error
	written []writtenFrame
	closed  bool

	pongHandler func(string) error
}

type writtenFrame struct {
	kind int
	data []byte
}

func (f *fakeWS) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reads) == 0 {
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, errors.New("no more reads queued")
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	return websocket.TextMessage, next, nil
}

func (f *fakeWS) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, writtenFrame{kind, data})
	return nil
}

func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWS) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeWS) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeWS) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongHandler = h
}

func (f *fakeWS) writtenFrames() []writtenFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]writtenFrame, len(f.written))
	copy(out, f.written)
	return out
}

func TestConn_SendMarshalsAndQueuesBytes(t *testing.T) {
	ws := &fakeWS{}
	c := newConn(ws)

	c.Send(types.Msg("pong", "ts", int64(123)))

	require.Equal(t, 1, len(c.send))
	assert.Greater(t, c.QueuedBytes(), 0)
}

func TestConn_SendDropsWhenBufferFull(t *testing.T) {
	ws := &fakeWS{}
	c := newConn(ws)
	c.send = make(chan []byte, 1)

	c.Send(types.Msg("a"))
	before := c.QueuedBytes()
	c.Send(types.Msg("b"))

	assert.Equal(t, before, c.QueuedBytes(), "second send should be dropped, not queued")
	assert.Equal(t, 1, len(c.send))
}

func TestConn_IdentityAccessorsAreConcurrencySafe(t *testing.T) {
	c := newConn(&fakeWS{})
	c.SetUserID("user-1")
	c.SetStreamID("room-1")
	c.SetRole(types.RoleHost)

	assert.Equal(t, types.UserID("user-1"), c.UserID())
	assert.Equal(t, types.StreamID("room-1"), c.StreamID())
	assert.Equal(t, types.RoleHost, c.Role())
}

func TestConn_WritePumpDrainsSendAndClosesOnChannelClose(t *testing.T) {
	ws := &fakeWS{}
	c := newConn(ws)

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()

	c.Send(types.Msg("pong"))
	c.closeSend()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writePump did not exit after send channel closed")
	}

	frames := ws.writtenFrames()
	require.GreaterOrEqual(t, len(frames), 1)
	assert.Equal(t, websocket.TextMessage, frames[0].kind)
	assert.Equal(t, websocket.CloseMessage, frames[len(frames)-1].kind)
	assert.True(t, ws.closed)
}

func TestConn_SocketIDsAreUnique(t *testing.T) {
	a := newConn(&fakeWS{})
	b := newConn(&fakeWS{})
	assert.NotEqual(t, a.SocketID(), b.SocketID())
}
