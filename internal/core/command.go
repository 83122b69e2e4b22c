package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom adds the client to a room, creating it on first join.
	CommandJoinRoom CommandKind = iota
	// CommandRelaySignal forwards an opaque signal blob to the other
	// members of a room.
	CommandRelaySignal
)

// Command represents an action requested by a client. The hub never
// inspects Signal beyond routing it by room code.
type Command struct {
	Kind   CommandKind
	Room   string
	Name   string
	Signal json.RawMessage
}
