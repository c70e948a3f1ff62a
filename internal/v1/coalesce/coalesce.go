// Package coalesce implements the time-windowed batcher used to cap the
// broadcast rate of high-churn message kinds (principally game_state).
package coalesce

import (
	"container/list"
	"sync"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Window is the flush delay from 4.C.
const Window = 33 * time.Millisecond

// FlushFunc receives every message enqueued for a key since the last flush,
// in enqueue order. Kinds where only the newest value matters (game_state)
// should look only at the last element.
type FlushFunc func(msgs []any)

type key struct {
	room types.StreamID
	kind string
}

type pending struct {
	mu      sync.Mutex
	queue   *list.List
	timer   *time.Timer
	flushFn FlushFunc
}

// Coalescer batches messages per (roomId, kind) behind a single-shot timer.
type Coalescer struct {
	mu      sync.Mutex
	pending map[key]*pending
}

// New creates an empty Coalescer.
func New() *Coalescer {
	return &Coalescer{pending: make(map[key]*pending)}
}

// Coalesce appends msg to the (room, kind) queue and arms the flush timer if
// it isn't already running. flushFn is fixed for the lifetime of a given key
// by whichever call first creates it.
func (c *Coalescer) Coalesce(room types.StreamID, kind string, msg any, flushFn FlushFunc) {
	k := key{room: room, kind: kind}

	c.mu.Lock()
	p, ok := c.pending[k]
	if !ok {
		p = &pending{queue: list.New(), flushFn: flushFn}
		c.pending[k] = p
	}
	c.mu.Unlock()

	p.mu.Lock()
	p.queue.PushBack(msg)
	if p.timer == nil {
		p.timer = time.AfterFunc(Window, func() { c.flush(k, p) })
	}
	p.mu.Unlock()
}

func (c *Coalescer) flush(k key, p *pending) {
	p.mu.Lock()
	msgs := make([]any, 0, p.queue.Len())
	for e := p.queue.Front(); e != nil; e = e.Next() {
		msgs = append(msgs, e.Value)
	}
	p.queue.Init()
	p.timer = nil
	fn := p.flushFn
	p.mu.Unlock()

	if len(msgs) > 0 && fn != nil {
		fn(msgs)
	}
}

// ClearRoom cancels all pending timers and drops all queues for a room,
// without flushing. Call on room destruction.
func (c *Coalescer) ClearRoom(room types.StreamID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pending {
		if k.room != room {
			continue
		}
		p.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		p.queue.Init()
		p.mu.Unlock()
		delete(c.pending, k)
	}
}

// Pending reports how many (room, kind) keys the Coalescer currently tracks
// (test hook). A key stays tracked after its queue flushes, until ClearRoom
// drops its room.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
