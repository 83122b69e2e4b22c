package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMembers carries the full ordered member-name list of a room
	// after any membership change.
	EventRoomMembers EventKind = iota
	// EventSignal carries an opaque signal blob relayed from another
	// member of the same room.
	EventSignal
	// EventSessionTerminated tells remaining members that their host has
	// disconnected and the room is gone.
	EventSessionTerminated
	// EventRoomError reports a rejected operation, currently only a join
	// addressed to a dead room.
	EventRoomError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	Members []string
	From    string
	Signal  json.RawMessage
	Error   *RelayError
}
