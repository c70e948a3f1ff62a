package signaling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/coalesce"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/relay"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/router"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/session"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/validate"
)

// Handlers owns the orchestration between the stateful components for
// every inbound message type.
type Handlers struct {
	rooms     *room.Registry
	sessions  *session.Manager
	limiter   *ratelimit.MessageLimiter
	coalescer *coalesce.Coalescer

	// bus is the optional cross-instance fan-out (§2.2, gated by
	// REDIS_ADDR). nil in single-instance mode; every call site must
	// treat a nil bus as a no-op rather than a caller error.
	bus *bus.Service

	// instanceID tags this pod's own publishes so subscribeRoom can ignore
	// its own echo coming back off the Redis channel.
	instanceID string
	roomSubs   *roomSubs
}

// New constructs a Handlers set bound to the given component instances.
func New(rooms *room.Registry, sessions *session.Manager, limiter *ratelimit.MessageLimiter, coalescer *coalesce.Coalescer) *Handlers {
	return &Handlers{
		rooms:      rooms,
		sessions:   sessions,
		limiter:    limiter,
		coalescer:  coalescer,
		instanceID: uuid.New().String(),
		roomSubs:   newRoomSubs(),
	}
}

// WithBus attaches the optional Redis-backed cross-instance fan-out.
// Returns h for chaining at construction time.
func (h *Handlers) WithBus(b *bus.Service) *Handlers {
	h.bus = b
	return h
}

// UnsubscribeRoom releases this instance's cross-instance subscription for
// streamID, if one was started. Wire into room.Registry's onDestroy
// callback so a reaped room's subscriber goroutine doesn't leak.
func (h *Handlers) UnsubscribeRoom(streamID types.StreamID) {
	h.unsubscribeRoom(streamID)
}

// RegisterAll installs every handler into r's dispatch table.
func (h *Handlers) RegisterAll(r *router.Router) {
	r.Register("ping", h.handlePing)
	r.Register("echo", h.handleEcho)
	r.Register("join_stream", h.handleJoinStream)
	r.Register("leave_stream", h.handleLeaveStream)
	r.Register("resume", h.handleResume)
	r.Register("webrtc_offer", h.handleSDPRelay("webrtc_offer"))
	r.Register("webrtc_answer", h.handleSDPRelay("webrtc_answer"))
	r.Register("ice_candidate", h.handleIceCandidate)
	r.Register("request_offer", h.handleRequestOffer)
	r.Register("cohost_request", h.handleCohostRequest)
	r.Register("cohost_cancel", h.handleCohostCancel)
	r.Register("cohost_accept", h.handleCohostAccept)
	r.Register("cohost_decline", h.handleCohostDecline)
	r.Register("cohost_end", h.handleCohostEnd)
	r.Register("cohost_mute", h.handleCohostRelay("cohost_mute"))
	r.Register("cohost_unmute", h.handleCohostRelay("cohost_unmute"))
	r.Register("cohost_cam_off", h.handleCohostRelay("cohost_cam_off"))
	r.Register("cohost_cam_on", h.handleCohostRelay("cohost_cam_on"))
	r.Register("game_init", h.handleGameInit)
	r.Register("game_state", h.handleGameState)
	r.Register("game_event", h.handleGameEvent)
}

func asConn(c router.Connection) Conn { return c.(Conn) }

func (h *Handlers) reportOpError(conn Conn, err error, msgID string) error {
	if oe, ok := err.(*room.OpError); ok {
		conn.Send(router.ErrorMsg(oe.Code, oe.Message, msgID))
		return nil
	}
	return err
}

func uint64Field(env *validate.Envelope, name string) *uint64 {
	if v, ok := env.Fields[name].(float64); ok {
		u := uint64(v)
		return &u
	}
	return nil
}

func mapField(env *validate.Envelope, name string) map[string]any {
	if v, ok := env.Fields[name].(map[string]any); ok {
		return v
	}
	return nil
}

// handlePing replies pong{ts} to the client's heartbeat (4.K, 25s cadence).
func (h *Handlers) handlePing(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	ts := time.Now().UnixMilli()
	if env.Ts != nil {
		ts = *env.Ts
	}
	conn.Send(types.Msg("pong", "ts", ts))
	return nil
}

func (h *Handlers) handleEcho(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	conn.Send(types.Msg("connection_echo_test"))
	return nil
}

// handleJoinStream implements 4.I joinStream, minting a session token once
// the assigned role is known.
func (h *Handlers) handleJoinStream(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	streamID := types.StreamID(env.StringField("streamId"))
	userID := types.UserID(env.StringField("userId"))

	mint := func(role types.RoleType) string {
		rec := h.sessions.CreateSession(userID, streamID, role)
		return rec.Token
	}

	role, err := h.rooms.JoinStream(conn, streamID, userID, mint)
	if err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}

	conn.SetUserID(userID)
	conn.SetStreamID(streamID)
	conn.SetRole(role)
	metrics.ParticipantsActive.Inc()
	h.subscribeRoom(streamID)

	if h.bus != nil && role == types.RoleHost {
		if err := h.bus.SetAdd(context.Background(), hostSetKey(streamID), string(userID)); err != nil {
			logging.Warn(context.Background(), "bus host advisory set-add failed", zap.Error(err))
		}
	}
	return nil
}

// handleLeaveStream implements 4.I leaveStream. On disconnect the Transport
// Listener calls Leave directly instead, which skips the host advisory
// set removal below.
func (h *Handlers) handleLeaveStream(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	if h.bus != nil && conn.Role() == types.RoleHost && conn.StreamID() != "" {
		if err := h.bus.SetRem(context.Background(), hostSetKey(conn.StreamID()), string(conn.UserID())); err != nil {
			logging.Warn(context.Background(), "bus host advisory set-rem failed", zap.Error(err))
		}
	}
	Leave(h.rooms, conn)
	return nil
}

// hostSetKey names the Redis set backing the cross-instance "room has a
// host somewhere" advisory check (§2.2). Never consulted for a join-time
// correctness decision; the local Room Registry stays authoritative.
func hostSetKey(streamID types.StreamID) string {
	return "signaling:hosts:" + string(streamID)
}

// Leave is the disconnect/leave_stream shared path: remove the participant
// and clear its connection-local identity.
func Leave(rooms *room.Registry, conn Conn) {
	if conn.StreamID() == "" {
		return
	}
	rooms.LeaveStream(conn.StreamID(), conn.UserID())
	metrics.ParticipantsActive.Dec()
	conn.SetStreamID("")
	conn.SetUserID("")
	conn.SetRole("")
}

// handleResume implements the 4.K session resume state machine.
func (h *Handlers) handleResume(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	token := env.StringField("sessionToken")

	rec, ok := h.sessions.GetSession(token)
	if !ok {
		conn.Send(router.ErrorMsg(types.ErrSessionExpired, "session expired or unknown", env.MsgID))
		return nil
	}

	rm, roomExists := h.rooms.GetRoom(rec.StreamID)
	if !roomExists {
		conn.Send(types.Msg("resume_migrated", "role", "viewer", "reason", "room_closed"))
		return nil
	}

	h.rooms.Restore(rec.StreamID, conn, rec.UserID, rec.Role)
	conn.SetUserID(rec.UserID)
	conn.SetStreamID(rec.StreamID)
	conn.SetRole(rec.Role)
	h.sessions.UpdateSession(token, session.Patch{})

	conn.Send(types.Msg("resume_ok",
		"role", string(rec.Role),
		"position", rec.QueuePosition,
		"gameStateVersion", rm.GameStateVersion(),
	))

	if rm.HasActiveGame() {
		conn.Send(rm.GameStateSnapshot())
	}
	return nil
}

// handleSDPRelay relays webrtc_offer/webrtc_answer to their target,
// resolving the "host" literal and stamping the authenticated sender.
func (h *Handlers) handleSDPRelay(kind string) router.HandlerFunc {
	return func(c router.Connection, env *validate.Envelope) error {
		conn := asConn(c)
		to := h.rooms.ResolveTarget(conn.StreamID(), types.UserID(env.StringField("toUserId")))

		msg := types.Msg(kind,
			"toUserId", string(to),
			"fromUserId", string(conn.UserID()),
			"sdp", env.Fields["sdp"],
		)
		msg.Critical = true
		relay.RelayToUser(h.rooms, to, msg)
		return nil
	}
}

// handleIceCandidate relays a trickle ICE candidate, rate-limited per
// userId (4.B) and droppable under backpressure (4.F) — it is never marked
// Critical.
func (h *Handlers) handleIceCandidate(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)

	if !h.limiter.TryConsume("ice_candidate", string(conn.UserID()), ratelimit.ICECandidateBucket, 1) {
		metrics.RateLimitedTotal.WithLabelValues("ice_candidate").Inc()
		conn.Send(router.ErrorMsg(types.ErrRateLimited, "ice_candidate rate limit exceeded", env.MsgID))
		return nil
	}

	to := h.rooms.ResolveTarget(conn.StreamID(), types.UserID(env.StringField("toUserId")))
	msg := types.Msg("ice_candidate",
		"toUserId", string(to),
		"fromUserId", string(conn.UserID()),
		"candidate", env.Fields["candidate"],
	)
	relay.RelayToUser(h.rooms, to, msg)
	return nil
}

// handleRequestOffer asks the room's host to (re)send an offer.
func (h *Handlers) handleRequestOffer(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	target := h.rooms.ResolveTarget(conn.StreamID(), types.UserID(types.HostLiteral))
	relay.RelayToUser(h.rooms, target, types.Msg("request_offer", "fromUserId", string(conn.UserID())))
	return nil
}

func (h *Handlers) handleCohostRequest(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	if err := h.rooms.CohostRequest(conn.StreamID(), conn.UserID()); err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}
	return nil
}

func (h *Handlers) handleCohostCancel(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	h.rooms.CohostCancel(conn.StreamID(), conn.UserID())
	return nil
}

func (h *Handlers) handleCohostAccept(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	guestID := types.UserID(env.StringField("guestUserId"))
	if err := h.rooms.CohostAccept(conn.StreamID(), conn.UserID(), guestID); err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}
	return nil
}

func (h *Handlers) handleCohostDecline(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	viewerID := types.UserID(env.StringField("viewerUserId"))
	reason := env.StringField("reason")
	if reason == "" {
		reason = "declined"
	}
	if err := h.rooms.CohostDecline(conn.StreamID(), conn.UserID(), viewerID, reason); err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}
	return nil
}

func (h *Handlers) handleCohostEnd(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	by := env.StringField("by")
	if err := h.rooms.CohostEnd(conn.StreamID(), conn.UserID(), by); err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}
	return nil
}

func (h *Handlers) handleCohostRelay(kind string) router.HandlerFunc {
	return func(c router.Connection, env *validate.Envelope) error {
		conn := asConn(c)
		if err := h.rooms.CohostRelay(conn.StreamID(), conn.UserID(), kind); err != nil {
			return h.reportOpError(conn, err, env.MsgID)
		}
		return nil
	}
}

func (h *Handlers) handleGameInit(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	gameID := env.StringField("gameId")
	version := uint64Field(env, "version")
	seed := uint64Field(env, "seed")

	if err := h.rooms.GameInit(conn.StreamID(), conn.UserID(), gameID, version, seed); err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}
	return nil
}

// handleGameState mutates game state and coalesces the room-wide broadcast
// over a 33ms window (4.C), flushing only the most recent snapshot.
func (h *Handlers) handleGameState(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	full, _ := env.Fields["full"].(bool)
	version := uint64Field(env, "version")
	patch := mapField(env, "patch")

	msg, err := h.rooms.GameStateUpdate(conn.StreamID(), conn.UserID(), version, full, patch)
	if err != nil {
		return h.reportOpError(conn, err, env.MsgID)
	}

	streamID := conn.StreamID()
	h.coalescer.Coalesce(streamID, "game_state", msg, func(msgs []any) {
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1].(types.Outbound)
		h.broadcastRoom(streamID, last)
	})
	return nil
}

// handleGameEvent forwards a rate-limited event to the host (any role).
func (h *Handlers) handleGameEvent(c router.Connection, env *validate.Envelope) error {
	conn := asConn(c)
	eventType := env.StringField("eventType")

	if !h.limiter.TryConsume("game_event", string(conn.UserID()), ratelimit.GameEventBucket, 1) {
		metrics.RateLimitedTotal.WithLabelValues("game_event").Inc()
		conn.Send(router.ErrorMsg(types.ErrRateLimited, "game_event rate limit exceeded", env.MsgID))
		return nil
	}

	payload := mapField(env, "payload")
	h.rooms.GameEvent(conn.StreamID(), conn.UserID(), eventType, payload)
	return nil
}
