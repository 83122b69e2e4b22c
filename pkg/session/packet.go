// Package session provides the client side of a peersync co-watch session:
// the connection manager that turns relay-delivered signaling into an
// established peer channel, and the sync protocol carried over it.
package session

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates the sync protocol events carried over the peer
// channel once connected.
type EventType string

const (
	EventPlay             EventType = "PLAY"
	EventPause            EventType = "PAUSE"
	EventSeek             EventType = "SEEK"
	EventBuffering        EventType = "BUFFERING"
	EventChat             EventType = "CHAT"
	EventPermissionUpdate EventType = "PERMISSION_UPDATE"
	EventSessionEnded     EventType = "SESSION_TERMINATED"
)

// Packet is one sync protocol message. The concrete types form a closed
// union: Playback, Chat, PermissionUpdate and SessionTerminated.
type Packet interface {
	Event() EventType
}

// Playback is an advisory playback-state hint: PLAY, PAUSE, SEEK or
// BUFFERING, with the sender's current position.
type Playback struct {
	Kind        EventType
	Timestamp   int64
	CurrentTime float64
}

func (p Playback) Event() EventType { return p.Kind }

// Chat is a chat message between the session participants.
type Chat struct {
	User      string
	Text      string
	Timestamp int64
}

func (Chat) Event() EventType { return EventChat }

// PermissionUpdate replaces the full list of authorized member names. It
// is a snapshot, never a delta.
type PermissionUpdate struct {
	Timestamp int64
	Names     []string
}

func (PermissionUpdate) Event() EventType { return EventPermissionUpdate }

// SessionTerminated tells the presentation layer the host is gone. It is
// synthesized locally from the relay's session-terminated event and never
// actually crosses the peer channel.
type SessionTerminated struct {
	Timestamp int64
}

func (SessionTerminated) Event() EventType { return EventSessionEnded }

// envelope is the single wire shape all packets map onto. Chat rides flat
// (user/text next to the event tag); playback uses currentTime; permission
// names travel in payload.
type envelope struct {
	Event     EventType `json:"event"`
	Timestamp int64     `json:"timestamp"`
	// Pointer so playback packets always carry the field, position zero
	// included, while the other packet kinds omit it.
	CurrentTime *float64        `json:"currentTime,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	User        string          `json:"user,omitempty"`
	Text        string          `json:"text,omitempty"`
}

// Encode serializes a packet for the peer channel.
func Encode(p Packet) ([]byte, error) {
	switch pkt := p.(type) {
	case Playback:
		switch pkt.Kind {
		case EventPlay, EventPause, EventSeek, EventBuffering:
		default:
			return nil, fmt.Errorf("encode: %q is not a playback event", pkt.Kind)
		}
		position := pkt.CurrentTime
		return json.Marshal(envelope{
			Event:       pkt.Kind,
			Timestamp:   pkt.Timestamp,
			CurrentTime: &position,
		})
	case Chat:
		return json.Marshal(envelope{
			Event:     EventChat,
			Timestamp: pkt.Timestamp,
			User:      pkt.User,
			Text:      pkt.Text,
		})
	case PermissionUpdate:
		names, err := json.Marshal(pkt.Names)
		if err != nil {
			return nil, err
		}
		return json.Marshal(envelope{
			Event:     EventPermissionUpdate,
			Timestamp: pkt.Timestamp,
			Payload:   names,
		})
	case SessionTerminated:
		return json.Marshal(envelope{
			Event:     EventSessionEnded,
			Timestamp: pkt.Timestamp,
		})
	default:
		return nil, fmt.Errorf("encode: unsupported packet type %T", p)
	}
}

// Decode parses a peer channel payload back into its packet type.
func Decode(data []byte) (Packet, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}

	switch env.Event {
	case EventPlay, EventPause, EventSeek, EventBuffering:
		pb := Playback{Kind: env.Event, Timestamp: env.Timestamp}
		if env.CurrentTime != nil {
			pb.CurrentTime = *env.CurrentTime
		}
		return pb, nil
	case EventChat:
		return Chat{
			User:      env.User,
			Text:      env.Text,
			Timestamp: env.Timestamp,
		}, nil
	case EventPermissionUpdate:
		var names []string
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &names); err != nil {
				return nil, fmt.Errorf("decode permission names: %w", err)
			}
		}
		return PermissionUpdate{
			Timestamp: env.Timestamp,
			Names:     names,
		}, nil
	case EventSessionEnded:
		return SessionTerminated{Timestamp: env.Timestamp}, nil
	default:
		return nil, fmt.Errorf("decode: unknown event %q", env.Event)
	}
}
