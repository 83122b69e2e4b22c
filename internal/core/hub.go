package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Stats is a point-in-time snapshot of hub state.
type Stats struct {
	Clients   int `json:"clients"`
	Rooms     int `json:"rooms"`
	DeadRooms int `json:"deadRooms"`
}

type dispatchReq struct {
	client *Client
	cmd    *Command
}

// Hub owns all room state: the membership index, the host of each room and
// the dead-room blacklist. A single Run goroutine applies every inbound
// event, so mutation and the resulting broadcast happen atomically with
// respect to other connections.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	dispatch   chan dispatchReq
	statsReq   chan chan Stats

	clients map[string]*Client
	rooms   map[string]*Room
	dead    *Deadlist

	log *zerolog.Logger
}

// NewHub creates a hub with the given dead-room blacklist capacity.
func NewHub(deadRoomCap int, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan dispatchReq, 64),
		statsReq:   make(chan chan Stats),
		clients:    make(map[string]*Client),
		rooms:      make(map[string]*Room),
		dead:       NewDeadlist(deadRoomCap),
		log:        logger,
	}
}

// RegisterClient adds a connection to the hub and starts forwarding its
// commands into the run loop.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection, applying host-departure or
// member-departure semantics for its room.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Stats asks the run loop for a snapshot. Returns zero stats if the hub is
// shut down before answering.
func (h *Hub) Stats(ctx context.Context) Stats {
	reply := make(chan Stats, 1)
	select {
	case h.statsReq <- reply:
	case <-ctx.Done():
		return Stats{}
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return Stats{}
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.clients[c.ID] = c
			go h.pump(ctx, c)
		case c := <-h.unregister:
			h.handleDisconnect(c)
		case req := <-h.dispatch:
			h.handleCommand(req.client, req.cmd)
		case reply := <-h.statsReq:
			reply <- Stats{
				Clients:   len(h.clients),
				Rooms:     len(h.rooms),
				DeadRooms: h.dead.Len(),
			}
		case <-ctx.Done():
			return
		}
	}
}

// pump forwards one client's commands into the serialized dispatch channel
// until the client is unregistered.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.dispatch <- dispatchReq{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	// The client may have been unregistered after the command was queued.
	if _, live := h.clients[c.ID]; !live {
		return
	}
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(c, cmd.Room, cmd.Name)
	case CommandRelaySignal:
		h.handleSignal(c, cmd.Room, cmd.Signal)
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

func (h *Hub) handleJoin(c *Client, roomCode, userName string) {
	code := NormalizeRoomCode(roomCode)

	if c.room != "" {
		// One join per connection; a second join is ignored.
		h.log.Warn().Str("conn", c.ID).Str("room", c.room).Msg("join while already in a room")
		return
	}

	if h.dead.Contains(code) {
		h.log.Info().Str("conn", c.ID).Str("room", code).Msg("join rejected, room expired")
		c.deliver(&Event{
			Kind:  EventRoomError,
			Room:  code,
			Error: relayError(ErrCodeSessionExpired, "room session has expired"),
		})
		return
	}

	c.name = userName
	room, ok := h.rooms[code]
	if !ok {
		room = NewRoom(code, c)
		h.rooms[code] = room
		c.isHost = true
		h.log.Info().Str("conn", c.ID).Str("room", code).Str("user", userName).Msg("room created, host assigned")
	} else {
		room.AddMember(c)
		h.log.Info().Str("conn", c.ID).Str("room", code).Str("user", userName).Msg("joined room")
	}
	c.room = code

	room.Broadcast(&Event{
		Kind:    EventRoomMembers,
		Room:    code,
		Members: room.MemberNames(),
	})
}

func (h *Hub) handleSignal(c *Client, roomCode string, blob []byte) {
	code := NormalizeRoomCode(roomCode)
	room, ok := h.rooms[code]
	if !ok {
		// Late signal for a dead or unknown room; dropped, never errored.
		h.log.Debug().Str("conn", c.ID).Str("room", code).Msg("signal for unknown room dropped")
		return
	}
	room.BroadcastExcept(c, &Event{
		Kind:   EventSignal,
		Room:   code,
		From:   c.ID,
		Signal: blob,
	})
}

func (h *Hub) handleDisconnect(c *Client) {
	// A repeated unregister must not close done twice.
	if _, live := h.clients[c.ID]; !live {
		return
	}
	delete(h.clients, c.ID)
	close(c.done)

	if c.room == "" {
		return
	}
	room, ok := h.rooms[c.room]
	if !ok {
		// Already orphaned by its host's departure.
		c.room = ""
		return
	}

	if room.Host() == c {
		h.log.Info().Str("conn", c.ID).Str("room", room.Code).Msg("host disconnected, terminating room")
		room.RemoveMember(c)
		room.Broadcast(&Event{Kind: EventSessionTerminated, Room: room.Code})
		// Orphan the survivors: no further room events reach them, and a
		// rejoin attempt hits the blacklist like everyone else.
		for _, m := range room.Members() {
			m.room = ""
		}
		delete(h.rooms, room.Code)
		h.dead.Add(room.Code)
		return
	}

	room.RemoveMember(c)
	c.room = ""
	h.log.Info().Str("conn", c.ID).Str("room", room.Code).Msg("member disconnected")
	room.Broadcast(&Event{
		Kind:    EventRoomMembers,
		Room:    room.Code,
		Members: room.MemberNames(),
	})
}
