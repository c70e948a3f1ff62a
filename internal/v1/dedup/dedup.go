// Package dedup implements the per-socket message-id deduplicator: a bounded
// ordered set that absorbs repeat sends without re-invoking a handler.
package dedup

import (
	"container/list"
	"sync"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Cap is the maximum number of remembered message ids per socket.
const Cap = 100

type socketSet struct {
	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

func newSocketSet() *socketSet {
	return &socketSet{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// seen reports whether msgID was already recorded for this socket, recording
// it if not. The bookkeeping mirrors the corpus's ring-buffer eviction idiom
// (oldest entry dropped once the cap is reached) rather than a true LRU
// promote-on-hit policy, since re-seeing an id is itself the duplicate signal.
func (s *socketSet) seen(msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[msgID]; ok {
		return true
	}

	elem := s.order.PushBack(msgID)
	s.index[msgID] = elem

	if s.order.Len() > Cap {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}

	return false
}

// Deduplicator tracks a bounded set of recent message ids per socket.
type Deduplicator struct {
	mu      sync.Mutex
	sockets map[types.SocketID]*socketSet
}

// New creates an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{sockets: make(map[types.SocketID]*socketSet)}
}

// IsDuplicate returns true iff msgID was already seen for sock within the
// last Cap entries. A side effect of calling this is that msgID becomes
// "seen" for future calls, so it must be called at most once per inbound
// frame.
func (d *Deduplicator) IsDuplicate(sock types.SocketID, msgID string) bool {
	if msgID == "" {
		return false
	}

	d.mu.Lock()
	set, ok := d.sockets[sock]
	if !ok {
		set = newSocketSet()
		d.sockets[sock] = set
	}
	d.mu.Unlock()

	return set.seen(msgID)
}

// Forget drops all state for a socket. Call on connection close.
func (d *Deduplicator) Forget(sock types.SocketID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sockets, sock)
}

// Len reports how many ids are currently tracked for a socket (test hook).
func (d *Deduplicator) Len(sock types.SocketID) int {
	d.mu.Lock()
	set, ok := d.sockets[sock]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return set.order.Len()
}
