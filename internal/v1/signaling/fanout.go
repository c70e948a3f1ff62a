package signaling

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/relay"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// roomSubs tracks this instance's active per-room Redis subscriptions, so a
// reaped room's subscription can be torn down instead of leaking goroutines.
type roomSubs struct {
	mu   sync.Mutex
	subs map[types.StreamID]context.CancelFunc
}

func newRoomSubs() *roomSubs {
	return &roomSubs{subs: make(map[types.StreamID]context.CancelFunc)}
}

func (rs *roomSubs) ensure(streamID types.StreamID, start func(ctx context.Context)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.subs[streamID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rs.subs[streamID] = cancel
	go start(ctx)
}

func (rs *roomSubs) stop(streamID types.StreamID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if cancel, ok := rs.subs[streamID]; ok {
		cancel()
		delete(rs.subs, streamID)
	}
}

// broadcastRoom fans msg out to every local participant in streamID and,
// when cross-instance fan-out is enabled (§2.2), publishes it so other pods
// relay it to their own local connections. subscribeRoom must already be
// running for streamID on every pod for the remote half to take effect.
func (h *Handlers) broadcastRoom(streamID types.StreamID, msg types.Outbound, roles ...types.RoleType) {
	relay.BroadcastToRoom(h.rooms, streamID, msg, roles...)
	if h.bus == nil {
		return
	}
	roleStrs := make([]string, len(roles))
	for i, r := range roles {
		roleStrs[i] = string(r)
	}
	if err := h.bus.Publish(context.Background(), string(streamID), msg.Type, msg.Fields, h.instanceID, roleStrs); err != nil {
		logging.Warn(context.Background(), "bus publish failed", zap.Error(err))
	}
}

// subscribeRoom starts relaying another pod's broadcasts for streamID into
// this pod's local connections. No-op without bus configured. Safe to call
// repeatedly; only the first call per streamID starts a subscription.
func (h *Handlers) subscribeRoom(streamID types.StreamID) {
	if h.bus == nil {
		return
	}
	h.roomSubs.ensure(streamID, func(ctx context.Context) {
		h.bus.Subscribe(ctx, string(streamID), nil, func(p bus.PubSubPayload) {
			if p.SenderID == h.instanceID {
				return // echo of our own publish
			}
			var fields map[string]any
			if len(p.Payload) > 0 {
				if err := json.Unmarshal(p.Payload, &fields); err != nil {
					logging.Warn(context.Background(), "bus payload decode failed", zap.Error(err))
					return
				}
			}
			roles := make([]types.RoleType, len(p.Roles))
			for i, r := range p.Roles {
				roles[i] = types.RoleType(r)
			}
			relay.BroadcastToRoom(h.rooms, streamID, types.Outbound{Type: p.Event, Fields: fields}, roles...)
		})
	})
}

// unsubscribeRoom stops relaying a destroyed room's cross-instance traffic.
// Wired into room.Registry's onDestroy callback alongside coalescer cleanup.
func (h *Handlers) unsubscribeRoom(streamID types.StreamID) {
	h.roomSubs.stop(streamID)
}
