package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin   = "join-room"
	InboundTypeSignal = "signal"

	OutboundTypeMembers    = "room-members"
	OutboundTypeRoomError  = "room-error"
	OutboundTypeTerminated = "session-terminated"
	OutboundTypeSignal     = "signal"
	OutboundTypeError      = "error"
)

// JoinData requests membership in a room, creating it on first join.
type JoinData struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// SignalData asks the relay to forward an opaque connection-setup blob to
// the other members of the room. The relay never parses Signal.
type SignalData struct {
	RoomID string          `json:"roomId"`
	Signal json.RawMessage `json:"signal"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SignalEvent delivers a relayed blob tagged with the sender's connection id.
type SignalEvent struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
