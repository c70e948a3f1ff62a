// Package signaling implements the per-type Handlers (4.K): join/leave,
// resume, SDP/ICE relay, the co-host queue, and game state/event handling.
// It is the orchestration layer that wires the Room Registry (I), Session
// Manager (D), Rate Limiter (B), and Coalescer (C) together behind the
// Message Router's (H) dispatch table.
package signaling

import (
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Conn is everything a Handler needs from a connection: outbound delivery,
// identity, and the mutable (streamId, userId, role) triple a connection
// carries once it has joined a room. Implemented by the Transport
// Listener's connection type (M).
type Conn interface {
	room.Sender
	SocketID() types.SocketID
	QueuedBytes() int

	UserID() types.UserID
	SetUserID(types.UserID)
	StreamID() types.StreamID
	SetStreamID(types.StreamID)
	Role() types.RoleType
	SetRole(types.RoleType)
}
