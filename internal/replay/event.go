package replay

import "github.com/roach88/roomstore/internal/record"

// EventType names an outbound packet.
type EventType string

const (
	TypeGlobalMessage   EventType = "gmsg"
	TypePrivateMessage  EventType = "pmsg"
	TypeGlobalVariable  EventType = "gvar"
	TypePrivateVariable EventType = "pvar"
	TypeProjectSet      EventType = "set"
)

// OutboundEvent is one packet produced by a replay.
type OutboundEvent struct {
	Type EventType
	// Room is the room the record came from. Empty for project events.
	Room string
	// Name is the variable name. Empty for messages.
	Name   string
	Value  any
	Origin *record.Identity
}

// Packet renders the event in the wire shape clients expect. Room events
// use the cmd/val/rooms layout; project events use method/name/value.
func (e OutboundEvent) Packet() map[string]any {
	switch e.Type {
	case TypeProjectSet:
		return map[string]any{
			"method": "set",
			"name":   e.Name,
			"value":  e.Value,
		}
	case TypeGlobalMessage:
		return map[string]any{
			"cmd":   string(e.Type),
			"val":   e.Value,
			"rooms": e.Room,
		}
	case TypePrivateMessage:
		return map[string]any{
			"cmd":    string(e.Type),
			"val":    e.Value,
			"origin": e.Origin,
			"rooms":  e.Room,
		}
	case TypeGlobalVariable:
		return map[string]any{
			"cmd":   string(e.Type),
			"name":  e.Name,
			"val":   e.Value,
			"rooms": e.Room,
		}
	case TypePrivateVariable:
		return map[string]any{
			"cmd":    string(e.Type),
			"name":   e.Name,
			"val":    e.Value,
			"origin": e.Origin,
			"rooms":  e.Room,
		}
	default:
		return map[string]any{"cmd": string(e.Type)}
	}
}

// Result is the outcome of a replay.
type Result struct {
	Events []OutboundEvent
	// Skipped holds one serialization error per stored record that could
	// not be decoded. Skipped records do not abort the replay.
	Skipped []error
}
