// Package room implements the Room Registry (4.I): rooms, participants,
// roles, the co-host queue, and per-room game state. Concurrency model is
// fine-grained locking (§5 model 2) — one RWMutex per Room plus one for the
// Registry's room index, matching the teacher's sync.RWMutex-per-entity
// idiom used throughout its hub/room generations.
package room

import (
	"sync"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/backpressure"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// MaxParticipants is the hard cap on a room's membership (4.I).
const MaxParticipants = 100

// Sender is anything that can receive an outbound wire message. The
// Transport Listener's connection type implements this; Room never touches
// sockets directly.
type Sender interface {
	Send(msg types.Outbound)
}

// Participant is a single (streamId, userId) membership (§3).
type Participant struct {
	Conn     Sender
	UserID   types.UserID
	StreamID types.StreamID
	Role     types.RoleType
}

type cohostEntry struct {
	UserID    types.UserID
	Timestamp time.Time
}

// GameState is the per-room versioned game blob (§3).
type GameState struct {
	Version uint64
	Data    map[string]any
	GameID  *string
	Seed    *uint64
}

// Room holds one stream's membership, co-host queue, and game state.
type Room struct {
	mu sync.RWMutex

	streamID       types.StreamID
	participants   map[types.UserID]*Participant
	activeGuestID  *types.UserID
	cohostQueue    []cohostEntry
	gameState      GameState
	lastHostSeenAt time.Time
}

func newRoom(streamID types.StreamID, now time.Time) *Room {
	return &Room{
		streamID:       streamID,
		participants:   make(map[types.UserID]*Participant),
		lastHostSeenAt: now,
	}
}

// StreamID returns the room's stream identifier.
func (rm *Room) StreamID() types.StreamID { return rm.streamID }

// ParticipantCount returns the current membership size.
func (rm *Room) ParticipantCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.participants)
}

// Snapshot returns a copy of every participant currently in the room, for
// callers (broadcast, reaper) that need to iterate without holding the
// room's lock.
func (rm *Room) Snapshot() []*Participant {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Participant, 0, len(rm.participants))
	for _, p := range rm.participants {
		out = append(out, p)
	}
	return out
}

// HasActiveGame reports whether a game is currently initialized.
func (rm *Room) HasActiveGame() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.gameState.GameID != nil
}

// GameStateVersion returns the current game state version (0 if no game).
func (rm *Room) GameStateVersion() uint64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.gameState.Version
}

// GameStateSnapshot returns the full game_state message for the current
// state (§4.K resume / join full-snapshot delivery).
func (rm *Room) GameStateSnapshot() types.Outbound {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.gameStateSnapshotLocked()
}

// restore force-sets a participant under its original role, overwriting any
// pre-existing entry for that userId (4.K session resume).
func (rm *Room) restore(conn Sender, userID types.UserID, role types.RoleType, now time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	p := &Participant{Conn: conn, UserID: userID, StreamID: rm.streamID, Role: role}
	rm.participants[userID] = p
	if role == types.RoleHost {
		rm.lastHostSeenAt = now
	}
}

// hostLocked returns the current host participant, or nil. Caller must hold
// rm.mu (read or write).
func (rm *Room) hostLocked() *Participant {
	for _, p := range rm.participants {
		if p.Role == types.RoleHost {
			return p
		}
	}
	return nil
}

func (rm *Room) activeGuestLocked() *Participant {
	if rm.activeGuestID == nil {
		return nil
	}
	return rm.participants[*rm.activeGuestID]
}

func (rm *Room) broadcastLocked(msg types.Outbound) {
	for _, p := range rm.participants {
		sendBP(p.Conn, msg)
	}
}

// sendBP enqueues msg on s honoring the Backpressure Monitor (4.F). Room's
// own broadcasts run while rm.mu is held, so they can't call through to the
// relay package (relay imports room); the classify/drop logic is small
// enough to apply directly here instead.
func sendBP(s Sender, msg types.Outbound) {
	status := backpressure.StatusOK
	if c, ok := s.(interface{ QueuedBytes() int }); ok {
		status = backpressure.Classify(c.QueuedBytes())
	}
	if !msg.Critical && backpressure.ShouldDrop(status, msg.Type) {
		metrics.MsgsDroppedTotal.WithLabelValues(msg.Type).Inc()
		return
	}
	s.Send(msg)
}

func (rm *Room) queueSnapshotLocked() []map[string]any {
	out := make([]map[string]any, 0, len(rm.cohostQueue))
	for _, e := range rm.cohostQueue {
		out = append(out, map[string]any{
			"userId":    string(e.UserID),
			"timestamp": e.Timestamp.UnixMilli(),
		})
	}
	return out
}

func (rm *Room) queueUpdateLocked() types.Outbound {
	return types.Msg("cohost_queue_updated", "queue", rm.queueSnapshotLocked())
}

func (rm *Room) addToQueueLocked(userID types.UserID, now time.Time) {
	for _, e := range rm.cohostQueue {
		if e.UserID == userID {
			return
		}
	}
	rm.cohostQueue = append(rm.cohostQueue, cohostEntry{UserID: userID, Timestamp: now})
}

func (rm *Room) removeFromQueueLocked(userID types.UserID) {
	for i, e := range rm.cohostQueue {
		if e.UserID == userID {
			rm.cohostQueue = append(rm.cohostQueue[:i], rm.cohostQueue[i+1:]...)
			return
		}
	}
}

func (rm *Room) gameStateSnapshotLocked() types.Outbound {
	gameID := ""
	if rm.gameState.GameID != nil {
		gameID = *rm.gameState.GameID
	}
	return types.Msg("game_state",
		"streamId", string(rm.streamID),
		"version", rm.gameState.Version,
		"gameId", gameID,
		"full", true,
		"patch", rm.gameState.Data,
	)
}

// join adds userID to the room, assigning host if the room was empty and
// viewer otherwise. mintToken is invoked once the role is known, so the
// Session Manager record can carry the correct role from creation. Returns
// the assigned role.
func (rm *Room) join(conn Sender, userID types.UserID, mintToken func(types.RoleType) string, now time.Time) (types.RoleType, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.participants[userID]; !exists && len(rm.participants) >= MaxParticipants {
		return "", opErr(types.ErrRoomFull, "room at capacity")
	}

	role := types.RoleViewer
	if len(rm.participants) == 0 {
		role = types.RoleHost
	}

	p := &Participant{Conn: conn, UserID: userID, StreamID: rm.streamID, Role: role}
	rm.participants[userID] = p
	if role == types.RoleHost {
		rm.lastHostSeenAt = now
	}

	sessionToken := mintToken(role)
	sendBP(conn, types.Msg("join_confirmed",
		"role", string(role),
		"sessionToken", sessionToken,
		"streamId", string(rm.streamID),
	))

	if role == types.RoleViewer {
		if host := rm.hostLocked(); host != nil {
			sendBP(host.Conn, types.Msg("joined_stream", "userId", string(userID)))
		}
	}

	rm.broadcastLocked(types.Msg("participant_count_update", "count", len(rm.participants)))

	if rm.gameState.GameID != nil {
		sendBP(conn, rm.gameStateSnapshotLocked())
	}

	return role, nil
}

// leave removes userID, unwinding co-host/guest state as needed. Returns
// true if the room is now empty (caller should destroy it).
func (rm *Room) leave(userID types.UserID, now time.Time) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	p, ok := rm.participants[userID]
	if !ok {
		return len(rm.participants) == 0
	}
	wasHost := p.Role == types.RoleHost
	wasGuest := p.Role == types.RoleGuest

	delete(rm.participants, userID)
	rm.removeFromQueueLocked(userID)

	if wasGuest && rm.activeGuestID != nil && *rm.activeGuestID == userID {
		rm.activeGuestID = nil
		if host := rm.hostLocked(); host != nil {
			sendBP(host.Conn, types.Msg("cohost_ended", "by", "guest"))
			sendBP(host.Conn, rm.queueUpdateLocked())
		}
	}
	if wasHost {
		if guest := rm.activeGuestLocked(); guest != nil {
			sendBP(guest.Conn, types.Msg("cohost_ended", "by", "host"))
		}
		rm.lastHostSeenAt = now
	}

	if len(rm.participants) > 0 {
		rm.broadcastLocked(types.Msg("participant_count_update", "count", len(rm.participants)))
	}

	return len(rm.participants) == 0
}

func (rm *Room) cohostRequest(viewerID types.UserID, now time.Time) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	viewer, ok := rm.participants[viewerID]
	if !ok {
		return opErr(types.ErrInvalidRequest, "not a participant")
	}

	if rm.activeGuestID != nil {
		sendBP(viewer.Conn, types.Msg("cohost_declined", "reason", "guest_active"))
		return nil
	}

	rm.addToQueueLocked(viewerID, now)

	if host := rm.hostLocked(); host != nil {
		sendBP(host.Conn, types.Msg("cohost_request", "fromUserId", string(viewerID)))
		sendBP(host.Conn, rm.queueUpdateLocked())
	}
	return nil
}

// cohostCancel lets a viewer withdraw their own pending co-host request.
func (rm *Room) cohostCancel(viewerID types.UserID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.removeFromQueueLocked(viewerID)
	if host := rm.hostLocked(); host != nil {
		sendBP(host.Conn, rm.queueUpdateLocked())
	}
}

func (rm *Room) cohostAccept(hostUserID, guestUserID types.UserID) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return opErr(types.ErrNotHost, "actor is not the host")
	}
	if rm.activeGuestID != nil {
		return opErr(types.ErrInvalidState, "a guest is already active")
	}
	guest, ok := rm.participants[guestUserID]
	if !ok {
		return opErr(types.ErrInvalidRequest, "unknown user")
	}

	rm.removeFromQueueLocked(guestUserID)
	id := guestUserID
	rm.activeGuestID = &id
	guest.Role = types.RoleGuest

	sendBP(guest.Conn, types.Msg("cohost_accepted"))
	sendBP(host.Conn, rm.queueUpdateLocked())
	return nil
}

func (rm *Room) cohostDecline(hostUserID, viewerUserID types.UserID, reason string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return opErr(types.ErrNotHost, "actor is not the host")
	}

	rm.removeFromQueueLocked(viewerUserID)
	if viewer, ok := rm.participants[viewerUserID]; ok {
		sendBP(viewer.Conn, types.Msg("cohost_declined", "reason", reason))
	}
	sendBP(host.Conn, rm.queueUpdateLocked())
	return nil
}

func (rm *Room) cohostEnd(hostUserID types.UserID, by string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return opErr(types.ErrNotHost, "actor is not the host")
	}
	if rm.activeGuestID == nil {
		return nil
	}
	guestID := *rm.activeGuestID
	guest := rm.participants[guestID]
	if guest != nil {
		guest.Role = types.RoleViewer
	}
	rm.activeGuestID = nil

	sendBP(host.Conn, types.Msg("cohost_ended", "by", by, "guestUserId", string(guestID)))
	sendBP(host.Conn, rm.queueUpdateLocked())
	if guest != nil {
		sendBP(guest.Conn, types.Msg("cohost_ended", "by", by))
	}
	return nil
}

// cohostRelay forwards kind (cohost_mute/_unmute/_cam_off/_cam_on) to the
// active guest. No-op if no guest is active.
func (rm *Room) cohostRelay(hostUserID types.UserID, kind string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return opErr(types.ErrNotHost, "actor is not the host")
	}
	if guest := rm.activeGuestLocked(); guest != nil {
		sendBP(guest.Conn, types.Msg(kind))
	}
	return nil
}

func (rm *Room) gameInit(hostUserID types.UserID, gameID string, version, seed *uint64, now time.Time) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return opErr(types.ErrNotHost, "actor is not the host")
	}

	v := uint64(1)
	if version != nil && *version > v {
		v = *version
	}
	s := uint64(now.UnixMilli())
	if seed != nil {
		s = *seed
	}
	gid := gameID
	rm.gameState = GameState{Version: v, GameID: &gid, Seed: &s, Data: nil}

	rm.broadcastLocked(types.Msg("game_init", "gameId", gid, "version", v, "seed", s))
	return nil
}

// gameStateUpdate mutates the room's game data and returns the snapshot
// message to broadcast. Broadcasting is the caller's responsibility (it is
// routed through the Coalescer per 4.I, outside Room's concern).
func (rm *Room) gameStateUpdate(hostUserID types.UserID, version *uint64, full bool, patch map[string]any) (types.Outbound, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	host := rm.hostLocked()
	if host == nil || host.UserID != hostUserID {
		return types.Outbound{}, opErr(types.ErrNotHost, "actor is not the host")
	}

	if full {
		rm.gameState.Data = patch
	} else {
		if rm.gameState.Data == nil {
			rm.gameState.Data = make(map[string]any)
		}
		for k, v := range patch {
			rm.gameState.Data[k] = v
		}
	}
	if version != nil {
		rm.gameState.Version = *version
	} else {
		rm.gameState.Version++
	}

	return rm.gameStateSnapshotLocked(), nil
}

// gameEvent forwards an event to the host, authenticated as fromUserID. It
// is silently dropped if no host is present.
func (rm *Room) gameEvent(fromUserID types.UserID, eventType string, payload map[string]any) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	host := rm.hostLocked()
	if host == nil {
		return
	}
	sendBP(host.Conn, types.Msg("game_event", "eventType", eventType, "from", string(fromUserID), "payload", payload))
}
