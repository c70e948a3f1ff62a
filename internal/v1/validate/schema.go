package validate

import "github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"

// FieldRule describes a single field's constraint within a message type's
// schema.
type FieldRule struct {
	Required bool
	MaxLen   int // 0 = no cap
}

// TypeSchema is the per-type schema entry from the table in 4.G.
type TypeSchema struct {
	Fields map[string]FieldRule
}

// allowListed collects every field name mentioned anywhere in Fields plus
// the envelope-level fields always permitted through sanitization.
func (s TypeSchema) allowListed() map[string]bool {
	allow := map[string]bool{
		"type": true, "msgId": true, "seq": true, "ts": true,
	}
	for name := range s.Fields {
		allow[name] = true
	}
	return allow
}

// Schemas is the complete per-type schema table (4.G); a type not present
// here is rejected as unknown_type. Types with an empty entry (ping, echo,
// leave_stream, request_offer, cohost_request, cohost_cancel) take no
// payload fields. Optional fields are listed only so sanitization keeps
// them; their shape (e.g. game_state's full/patch union) is checked
// further downstream by the handlers.
var Schemas = map[string]TypeSchema{
	"ping":          {},
	"echo":          {},
	"leave_stream":  {},
	"request_offer": {},
	"cohost_request": {},
	"cohost_cancel": {},

	"join_stream": {Fields: map[string]FieldRule{
		"streamId": {Required: true, MaxLen: 100},
		"userId":   {Required: true, MaxLen: 100},
	}},
	"resume": {Fields: map[string]FieldRule{
		"sessionToken": {Required: true, MaxLen: 200},
		"roomId":       {Required: false, MaxLen: 100},
	}},
	"webrtc_offer": {Fields: map[string]FieldRule{
		"toUserId":   {Required: true, MaxLen: 100},
		"fromUserId": {Required: true, MaxLen: 100},
		"sdp":        {Required: true},
	}},
	"webrtc_answer": {Fields: map[string]FieldRule{
		"toUserId":   {Required: true, MaxLen: 100},
		"fromUserId": {Required: true, MaxLen: 100},
		"sdp":        {Required: true},
	}},
	"ice_candidate": {Fields: map[string]FieldRule{
		"toUserId":   {Required: true, MaxLen: 100},
		"fromUserId": {Required: true, MaxLen: 100},
		"candidate":  {Required: true},
	}},
	"cohost_accept": {Fields: map[string]FieldRule{
		"streamId":     {Required: true, MaxLen: 100},
		"guestUserId":  {Required: true, MaxLen: 100},
	}},
	"cohost_decline": {Fields: map[string]FieldRule{
		"streamId":      {Required: true, MaxLen: 100},
		"viewerUserId":  {Required: true, MaxLen: 100},
		"reason":        {},
	}},
	"cohost_end": {Fields: map[string]FieldRule{
		"streamId": {Required: true},
		"by":       {Required: true},
	}},
	"cohost_mute":    cohostTargetSchema(),
	"cohost_unmute":  cohostTargetSchema(),
	"cohost_cam_off": cohostTargetSchema(),
	"cohost_cam_on":  cohostTargetSchema(),
	"game_init": {Fields: map[string]FieldRule{
		"streamId": {Required: true},
		"gameId":   {Required: true, MaxLen: 100},
		"version":  {},
		"seed":     {},
	}},
	"game_state": {Fields: map[string]FieldRule{
		"streamId": {Required: true},
		"version":  {},
		"full":     {},
		"patch":    {},
	}},
	"game_event": {Fields: map[string]FieldRule{
		"streamId":  {Required: true},
		"eventType": {Required: true},
		"payload":   {},
	}},
}

func cohostTargetSchema() TypeSchema {
	return TypeSchema{Fields: map[string]FieldRule{
		"streamId": {Required: true},
		"target":   {Required: true},
	}}
}

// KnownType reports whether typ is in the message catalog at all.
func KnownType(typ string) bool {
	_, ok := Schemas[typ]
	return ok
}

// CheckSchema validates env against the per-type schema (4.G layer 2) and
// strips every field not on the type's allow-list (the sanitization pass),
// mutating env.Fields in place.
func CheckSchema(env *Envelope) error {
	schema, ok := Schemas[env.Type]
	if !ok {
		return newError(types.ErrUnknownType, "type not in catalog: "+env.Type)
	}

	for name, rule := range schema.Fields {
		if rule.Required && !env.HasField(name) {
			return newError(types.ErrInvalidRequest, "missing required field: "+name)
		}
		if rule.MaxLen > 0 {
			if v, ok := env.Fields[name].(string); ok && len(v) > rule.MaxLen {
				return newError(types.ErrInvalidRequest, "field too long: "+name)
			}
		}
	}

	allow := schema.allowListed()
	for name := range env.Fields {
		if !allow[name] {
			delete(env.Fields, name)
		}
	}

	return nil
}
