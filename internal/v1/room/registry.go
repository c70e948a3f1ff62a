package room

import (
	"sync"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Registry owns every live Room, keyed by streamId. There is no separate
// userId→Room index: cross-room lookups (FindParticipant) take a read lock
// on the rooms map, then each Room's own lock in turn.
type Registry struct {
	mu    sync.RWMutex
	rooms map[types.StreamID]*Room

	now func() time.Time

	// onDestroy, if set, is invoked whenever a room is removed from the
	// registry (emptied out or reaped), so callers can release any
	// room-scoped state they own (coalescer queues, metrics gauges).
	onDestroy func(types.StreamID)
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[types.StreamID]*Room),
		now:   time.Now,
	}
}

// SetOnDestroy installs the room-destroyed callback.
func (r *Registry) SetOnDestroy(fn func(types.StreamID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDestroy = fn
}

func (r *Registry) getOrCreate(streamID types.StreamID) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[streamID]
	if !ok {
		rm = newRoom(streamID, r.now())
		r.rooms[streamID] = rm
	}
	return rm
}

// GetRoom returns the room for streamID, if it currently exists.
func (r *Registry) GetRoom(streamID types.StreamID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[streamID]
	return rm, ok
}

func (r *Registry) destroy(streamID types.StreamID) {
	r.mu.Lock()
	delete(r.rooms, streamID)
	cb := r.onDestroy
	r.mu.Unlock()
	if cb != nil {
		cb(streamID)
	}
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// StreamIDs returns a snapshot of every live room's id, for the /healthz
// endpoint.
func (r *Registry) StreamIDs() []types.StreamID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.StreamID, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

// JoinStream implements 4.I joinStream. mintToken is invoked with the
// assigned role once it is known (host iff the room was empty) and its
// return value is sent to the joiner as the new session token.
func (r *Registry) JoinStream(conn Sender, streamID types.StreamID, userID types.UserID, mintToken func(types.RoleType) string) (types.RoleType, error) {
	rm := r.getOrCreate(streamID)
	return rm.join(conn, userID, mintToken, r.now())
}

// LeaveStream implements 4.I leaveStream, destroying the room if it is left
// empty.
func (r *Registry) LeaveStream(streamID types.StreamID, userID types.UserID) {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return
	}
	if rm.leave(userID, r.now()) {
		r.destroy(streamID)
	}
}

// Restore force-sets a participant under its original (streamId, userId,
// role), overwriting any pre-existing entry — used by the Session Manager
// resume flow (4.K). Creates the room if it does not exist (callers should
// already have checked room existence to decide resume vs. migration).
func (r *Registry) Restore(streamID types.StreamID, conn Sender, userID types.UserID, role types.RoleType) {
	rm := r.getOrCreate(streamID)
	rm.restore(conn, userID, role, r.now())
}

// CohostCancel implements 4.I cohost_cancel: a viewer withdraws their own
// pending request.
func (r *Registry) CohostCancel(streamID types.StreamID, viewerID types.UserID) {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return
	}
	rm.cohostCancel(viewerID)
}

// CohostRequest implements 4.I cohostRequest.
func (r *Registry) CohostRequest(streamID types.StreamID, viewerID types.UserID) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.cohostRequest(viewerID, r.now())
}

// CohostAccept implements 4.I cohostAccept.
func (r *Registry) CohostAccept(streamID types.StreamID, hostUserID, guestUserID types.UserID) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.cohostAccept(hostUserID, guestUserID)
}

// CohostDecline implements 4.I cohostDecline.
func (r *Registry) CohostDecline(streamID types.StreamID, hostUserID, viewerUserID types.UserID, reason string) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.cohostDecline(hostUserID, viewerUserID, reason)
}

// CohostEnd implements 4.I cohostEnd.
func (r *Registry) CohostEnd(streamID types.StreamID, hostUserID types.UserID, by string) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.cohostEnd(hostUserID, by)
}

// CohostRelay implements 4.I cohost_{mute,unmute,cam_off,cam_on}.
func (r *Registry) CohostRelay(streamID types.StreamID, hostUserID types.UserID, kind string) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.cohostRelay(hostUserID, kind)
}

// GameInit implements 4.I game_init.
func (r *Registry) GameInit(streamID types.StreamID, hostUserID types.UserID, gameID string, version, seed *uint64) error {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.gameInit(hostUserID, gameID, version, seed, r.now())
}

// GameStateUpdate implements 4.I game_state. It returns the snapshot
// message; the caller is responsible for passing it through the Coalescer
// and then BroadcastToRoom on flush.
func (r *Registry) GameStateUpdate(streamID types.StreamID, hostUserID types.UserID, version *uint64, full bool, patch map[string]any) (types.Outbound, error) {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return types.Outbound{}, opErr(types.ErrInvalidRequest, "no such room")
	}
	return rm.gameStateUpdate(hostUserID, version, full, patch)
}

// GameEvent implements 4.I game_event.
func (r *Registry) GameEvent(streamID types.StreamID, fromUserID types.UserID, eventType string, payload map[string]any) {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return
	}
	rm.gameEvent(fromUserID, eventType, payload)
}

// ResolveTarget implements the `toUserId = "host"` resolution rule (4.I):
// substitutes the literal "host" for the room's actual host userId.
func (r *Registry) ResolveTarget(streamID types.StreamID, toUserID types.UserID) types.UserID {
	if string(toUserID) != types.HostLiteral {
		return toUserID
	}
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return toUserID
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if host := rm.hostLocked(); host != nil {
		return host.UserID
	}
	return toUserID
}

// FindParticipant scans every room for userID (the relay namespace is
// global; first match wins per the Open Question resolution in
// DESIGN.md).
func (r *Registry) FindParticipant(userID types.UserID) (*Participant, bool) {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.RLock()
		p, ok := rm.participants[userID]
		rm.mu.RUnlock()
		if ok {
			return p, true
		}
	}
	return nil, false
}

// BroadcastToRoom sends msg to every open participant connection in
// streamID, honoring the Backpressure Monitor (4.F). Application code
// (signaling, lifecycle) uses relay.BroadcastToRoom instead, which adds
// role-scoped filtering; cross-instance fan-out is added on top of that by
// the signaling package.
func (r *Registry) BroadcastToRoom(streamID types.StreamID, msg types.Outbound) {
	rm, ok := r.GetRoom(streamID)
	if !ok {
		return
	}
	for _, p := range rm.Snapshot() {
		sendBP(p.Conn, msg)
	}
}

// ReapIdle implements the Lifecycle Manager's idle-room reaper (4.L): any
// room with no host present for longer than timeout is destroyed after
// notifying its remaining participants. Returns the destroyed room ids.
func (r *Registry) ReapIdle(timeout time.Duration) []types.StreamID {
	now := r.now()

	r.mu.Lock()
	candidates := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		candidates = append(candidates, rm)
	}
	r.mu.Unlock()

	var reaped []types.StreamID
	for _, rm := range candidates {
		rm.mu.Lock()
		if rm.hostLocked() != nil {
			rm.lastHostSeenAt = now
			rm.mu.Unlock()
			continue
		}
		expired := now.Sub(rm.lastHostSeenAt) > timeout
		var participants []*Participant
		if expired {
			for _, p := range rm.participants {
				participants = append(participants, p)
			}
		}
		id := rm.streamID
		rm.mu.Unlock()

		if !expired {
			continue
		}
		closedMsg := types.Msg("room_closed", "reason", "host_timeout")
		closedMsg.Critical = true
		for _, p := range participants {
			sendBP(p.Conn, closedMsg)
		}
		r.destroy(id)
		reaped = append(reaped, id)
	}
	return reaped
}
