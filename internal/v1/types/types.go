// Package types defines shared identifiers and closed enums used across the
// signaling server. Keeping these in one leaf package avoids import cycles
// between room, relay, router and signaling.
package types

import "encoding/json"

// RoleType is a participant's role within a Room.
type RoleType string

const (
	RoleHost   RoleType = "host"
	RoleGuest  RoleType = "guest"
	RoleViewer RoleType = "viewer"
)

// UserID identifies a user within the global relay namespace (see Open
// Questions in DESIGN.md for the single-namespace caveat).
type UserID string

// StreamID identifies a room/stream.
type StreamID string

// SocketID is a monotonic, per-process connection identifier assigned by the
// Transport Listener. It never repeats within a process lifetime.
type SocketID uint64

// ErrorCode is the closed enum of machine-readable error tags sent to
// clients. New codes are added here, never invented ad hoc at the call site.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "invalid_request"
	ErrUnknownType     ErrorCode = "unknown_type"
	ErrMissingType     ErrorCode = "missing_type"
	ErrPayloadTooLarge ErrorCode = "payload_too_large"
	ErrRateLimited     ErrorCode = "rate_limited"
	ErrRoomFull        ErrorCode = "room_full"
	ErrSessionExpired  ErrorCode = "SESSION_EXPIRED"
	ErrNotHost         ErrorCode = "NOT_HOST"
	ErrInvalidInit     ErrorCode = "INVALID_INIT"
	ErrInvalidState    ErrorCode = "INVALID_STATE"
	ErrInvalidEvent    ErrorCode = "INVALID_EVENT"
	ErrInternal        ErrorCode = "internal_error"
)

// HostLiteral is the well-known relay-target token that resolves to the
// room's current host userId (4.I "toUserId=host resolution").
const HostLiteral = "host"

// Outbound is a server-to-client message: a wire "type" tag plus whatever
// type-specific fields that message carries. Critical marks messages the
// Backpressure Monitor must never drop (4.F).
type Outbound struct {
	Type     string
	Fields   map[string]any
	Critical bool
}

// Msg builds an Outbound from a type tag and inline key/value pairs, e.g.
// Msg("ack", "for", msgID, "ts", now).
func Msg(typ string, kv ...any) Outbound {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return Outbound{Type: typ, Fields: fields}
}

// MarshalJSON flattens Type and Fields into a single JSON object with a
// "type" key, matching the wire envelope shape (§3).
func (o Outbound) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(o.Fields)+1)
	for k, v := range o.Fields {
		flat[k] = v
	}
	flat["type"] = o.Type
	return json.Marshal(flat)
}
