// Package relay implements targeted and fan-out delivery (4.J): relayToUser
// and broadcastToRoom, both backpressure-aware.
package relay

import (
	"k8s.io/utils/set"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/backpressure"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Connection is the subset of the transport connection the relay needs
// beyond room.Sender: its current outbound queue depth, for backpressure
// classification.
type Connection interface {
	room.Sender
	QueuedBytes() int
}

func classify(s room.Sender) backpressure.Status {
	conn, ok := s.(Connection)
	if !ok {
		return backpressure.StatusOK
	}
	return backpressure.Classify(conn.QueuedBytes())
}

// RelayToUser implements 4.J relayToUser: finds the participant across all
// rooms (global namespace, first match wins) and enqueues msg through the
// Backpressure Monitor. Returns false if the user wasn't found or the
// message was dropped under pressure.
func RelayToUser(reg *room.Registry, userID types.UserID, msg types.Outbound) bool {
	p, ok := reg.FindParticipant(userID)
	if !ok {
		return false
	}

	status := classify(p.Conn)
	if !msg.Critical && backpressure.ShouldDrop(status, msg.Type) {
		metrics.MsgsDroppedTotal.WithLabelValues(msg.Type).Inc()
		return false
	}

	p.Conn.Send(msg)
	return true
}

// BroadcastToRoom implements 4.J broadcastToRoom: enqueues msg to every
// open participant connection in streamID, honoring backpressure
// identically to RelayToUser. If roles is non-empty, only participants
// whose role is in that set receive the message (role-scoped broadcast,
// e.g. co-host queue updates to the host only).
func BroadcastToRoom(reg *room.Registry, streamID types.StreamID, msg types.Outbound, roles ...types.RoleType) {
	rm, ok := reg.GetRoom(streamID)
	if !ok {
		return
	}

	var allow set.Set[types.RoleType]
	if len(roles) > 0 {
		allow = set.New(roles...)
	}

	for _, p := range rm.Snapshot() {
		if allow != nil && !allow.Has(p.Role) {
			continue
		}
		status := classify(p.Conn)
		if !msg.Critical && backpressure.ShouldDrop(status, msg.Type) {
			metrics.MsgsDroppedTotal.WithLabelValues(msg.Type).Inc()
			continue
		}
		p.Conn.Send(msg)
	}
}
