// Package validate implements the Payload Validator: envelope shape checks,
// the per-type schema table, and the sanitization allow-list pass.
package validate

import (
	"encoding/json"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// MaxPayloadBytes is the hard cap on a single inbound frame (4.G).
const MaxPayloadBytes = 64 * 1024

// MaxTypeLen is the max length of the envelope's type field.
const MaxTypeLen = 50

// Envelope is the decoded wire-layer shape, kept loose (every field in a
// generic map, plus the raw frame) so the schema layer can apply
// type-specific length checks before handlers ever see a Go struct.
type Envelope struct {
	Type    string          `json:"type"`
	MsgID   string          `json:"msgId,omitempty"`
	Seq     *uint32         `json:"seq,omitempty"`
	Ts      *int64          `json:"ts,omitempty"`
	Fields  map[string]any  `json:"-"`
	Raw     json.RawMessage `json:"-"`
}

// Error is a validation failure carrying the closed error code to report to
// the client.
type Error struct {
	Code    types.ErrorCode
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func newError(code types.ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// ParseEnvelope parses a raw inbound frame into an Envelope, checking the
// frame size cap and the envelope shape (4.G layer 1). It does not apply the
// per-type schema (layer 2); call CheckSchema separately once the type is
// known to be in the catalog.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, newError(types.ErrPayloadTooLarge, "frame exceeds 64 KiB")
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, newError(types.ErrInvalidRequest, "malformed JSON")
	}

	rawType, ok := generic["type"]
	if !ok {
		return nil, newError(types.ErrMissingType, "missing type field")
	}
	typeStr, ok := rawType.(string)
	if !ok {
		return nil, newError(types.ErrInvalidRequest, "type must be a string")
	}
	if len(typeStr) == 0 || len(typeStr) > MaxTypeLen {
		return nil, newError(types.ErrInvalidRequest, "type length out of bounds")
	}

	env := &Envelope{Type: typeStr, Fields: generic, Raw: raw}

	if msgID, ok := generic["msgId"].(string); ok {
		env.MsgID = msgID
	}
	if rawSeq, ok := generic["seq"]; ok {
		if f, ok := rawSeq.(float64); ok && f >= 0 {
			v := uint32(f)
			env.Seq = &v
		}
	}
	if rawTs, ok := generic["ts"]; ok {
		if f, ok := rawTs.(float64); ok {
			v := int64(f)
			env.Ts = &v
		}
	}

	return env, nil
}

// StringField reads a string field, returning "" if absent or wrong type.
func (e *Envelope) StringField(name string) string {
	if v, ok := e.Fields[name].(string); ok {
		return v
	}
	return ""
}

// HasField reports whether name is present at all (used to distinguish
// "absent" from "present but empty" for required-field checks).
func (e *Envelope) HasField(name string) bool {
	_, ok := e.Fields[name]
	return ok
}
