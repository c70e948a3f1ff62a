// Package router implements the Message Router (4.H): the per-frame
// pipeline of parse, envelope/schema validation, dedup, sequence tracking,
// dispatch, and the ack/error wire helpers.
package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/dedup"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/validate"
)

// Connection is what the router needs from a transport connection: a way
// to send outbound messages and its stable socket id.
type Connection interface {
	room.Sender
	SocketID() types.SocketID
}

// HandlerFunc processes one validated, deduplicated inbound message.
type HandlerFunc func(conn Connection, env *validate.Envelope) error

// needsAck is the set of types that receive an {type:"ack"} response when
// they carry a msgId, per 4.H.
var needsAck = map[string]bool{
	"join_stream":     true,
	"resume":          true,
	"webrtc_offer":    true,
	"webrtc_answer":   true,
	"ice_candidate":   true,
	"game_event":      true,
	"cohost_request":  true,
	"cohost_accept":   true,
	"cohost_decline":  true,
}

// Router owns the dispatch table and the per-socket dedup/sequence state.
type Router struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	dedup    *dedup.Deduplicator
	lastSeq  map[types.SocketID]uint32

	now func() time.Time
}

// New constructs an empty Router.
func New() *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		dedup:    dedup.New(),
		lastSeq:  make(map[types.SocketID]uint32),
		now:      time.Now,
	}
}

// Register installs the handler for a message type. Intended to be called
// during setup, not concurrently with HandleFrame.
func (r *Router) Register(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Forget releases per-socket dedup/sequence state (called on disconnect).
func (r *Router) Forget(sock types.SocketID) {
	r.dedup.Forget(sock)
	r.mu.Lock()
	delete(r.lastSeq, sock)
	r.mu.Unlock()
}

// HandleFrame runs the full 4.H pipeline over one inbound frame.
func (r *Router) HandleFrame(ctx context.Context, conn Connection, raw []byte) {
	start := r.now()

	env, err := validate.ParseEnvelope(raw)
	if err != nil {
		r.reportValidationError(conn, "", err)
		return
	}

	if err := validate.CheckSchema(env); err != nil {
		r.reportValidationError(conn, env.MsgID, err)
		// Still acked when msgId present, to avoid client retry (4.H step 3).
		if env.MsgID != "" && needsAck[env.Type] {
			conn.Send(Ack(env.MsgID))
		}
		return
	}

	if env.MsgID != "" && r.dedup.IsDuplicate(conn.SocketID(), env.MsgID) {
		metrics.MsgsDuplicateTotal.WithLabelValues(env.Type).Inc()
		if needsAck[env.Type] {
			conn.Send(Ack(env.MsgID))
		}
		return
	}

	if env.Seq != nil {
		r.mu.Lock()
		last := r.lastSeq[conn.SocketID()]
		if *env.Seq <= last {
			metrics.MsgsOutOfOrderTotal.WithLabelValues(env.Type).Inc()
		}
		if *env.Seq > last {
			r.lastSeq[conn.SocketID()] = *env.Seq
		}
		r.mu.Unlock()
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.reportValidationError(conn, env.MsgID, &validate.Error{Code: types.ErrUnknownType, Message: "no handler registered"})
		return
	}

	if err := handler(conn, env); err != nil {
		logging.Error(ctx, "handler error", zap.String("type", env.Type), zap.Error(err))
		conn.Send(ErrorMsg(types.ErrInternal, "internal error", env.MsgID))
		return
	}

	if env.MsgID != "" && needsAck[env.Type] {
		conn.Send(Ack(env.MsgID))
	}

	metrics.MessageProcessingSeconds.WithLabelValues(env.Type).Observe(r.now().Sub(start).Seconds())
	metrics.MsgsHandledTotal.WithLabelValues(env.Type).Inc()
}

func (r *Router) reportValidationError(conn Connection, msgID string, err error) {
	code := types.ErrInvalidRequest
	if ve, ok := err.(*validate.Error); ok {
		code = ve.Code
	}
	metrics.RecordInvalidRequest(string(code))
	conn.Send(ErrorMsg(code, err.Error(), msgID))
}

// Ack builds the {type:"ack"} wire helper (4.H).
func Ack(forMsgID string) types.Outbound {
	m := types.Msg("ack", "for", forMsgID, "ts", time.Now().UnixMilli())
	m.Critical = true
	return m
}

// ErrorMsg builds the {type:"error"} wire helper (4.H). ref is omitted from
// the wire payload when empty.
func ErrorMsg(code types.ErrorCode, message string, ref string) types.Outbound {
	kv := []any{"code", string(code), "message", message}
	if ref != "" {
		kv = append(kv, "ref", ref)
	}
	m := types.Msg("error", kv...)
	m.Critical = true
	return m
}
