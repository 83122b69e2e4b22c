package core

import "strings"

// Room groups the live connections sharing one session code. A room exists
// only as an entry in the hub's index: it appears when the first member
// joins and disappears when its host disconnects. All access happens on the
// hub goroutine, so no lock is needed.
type Room struct {
	Code    string
	host    *Client
	members []*Client
}

// NewRoom constructs a room whose creator becomes host.
func NewRoom(code string, creator *Client) *Room {
	return &Room{
		Code:    code,
		host:    creator,
		members: []*Client{creator},
	}
}

// NormalizeRoomCode maps user-entered codes onto the canonical form the hub
// indexes by: trimmed and uppercased.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AddMember appends a client in join order. Returns false if already present.
func (r *Room) AddMember(c *Client) bool {
	for _, m := range r.members {
		if m == c {
			return false
		}
	}
	r.members = append(r.members, c)
	return true
}

// RemoveMember deletes a client preserving join order. Returns true if removed.
func (r *Room) RemoveMember(c *Client) bool {
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Host returns the member whose join created the room.
func (r *Room) Host() *Client {
	return r.host
}

// Members returns the live members in join order. The slice is owned by
// the room; callers must not mutate it.
func (r *Room) Members() []*Client {
	return r.members
}

// MemberNames returns display names in join order.
func (r *Room) MemberNames() []string {
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.name)
	}
	return names
}

// MemberCount returns the number of live members.
func (r *Room) MemberCount() int {
	return len(r.members)
}

// Broadcast sends an event to all members of the room.
func (r *Room) Broadcast(ev *Event) {
	for _, m := range r.members {
		m.deliver(ev)
	}
}

// BroadcastExcept sends an event to every member but the given one.
func (r *Room) BroadcastExcept(sender *Client, ev *Event) {
	for _, m := range r.members {
		if m == sender {
			continue
		}
		m.deliver(ev)
	}
}
