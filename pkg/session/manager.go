package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/peersync/peersync/internal/proto"
	"github.com/peersync/peersync/pkg/peer"
)

// Error codes surfaced on the room-error callback. SESSION_EXPIRED comes
// from the relay; the rest are synthesized locally when a transport fails.
const (
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
	ErrCodeRelayDisconnected = "RELAY_DISCONNECTED"
	ErrCodePeerDisconnected  = "PEER_DISCONNECTED"
	ErrCodePeerTimeout       = "PEER_TIMEOUT"
)

// DefaultHandshakeTimeout bounds how long a half-established peer channel
// may stay pending before PEER_TIMEOUT is surfaced. The original behavior
// waited forever, which is not a safe default.
const DefaultHandshakeTimeout = 30 * time.Second

var (
	ErrDestroyed      = errors.New("session manager destroyed")
	ErrSessionStarted = errors.New("session already started")
)

// Manager owns one relay link and one peer channel per co-watch session.
// It turns CreateRoom/JoinRoom/SendChat/Broadcast intents into relay
// messages and peer payloads, and inbound relay/peer events into the four
// callback slots consumed by the presentation layer.
type Manager struct {
	conn             *websocket.Conn
	factory          peer.Factory
	handshakeTimeout time.Duration
	log              *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	channel        peer.Channel
	pendingStart   bool
	handshakeTimer *time.Timer
	isHost         bool
	roomID         string
	destroyed      bool

	onSync      func(Packet)
	onChat      func(Chat)
	onMembers   func([]string)
	onRoomError func(code string)
}

// Option tweaks Manager construction.
type Option func(*Manager)

// WithHandshakeTimeout overrides the bounded wait for peer connection
// setup. Zero disables the timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.handshakeTimeout = d }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// New dials the relay immediately and starts consuming its events. The
// peer channel is only created later, by CreateRoom or JoinRoom.
func New(ctx context.Context, relayURL string, factory peer.Factory, opts ...Option) (*Manager, error) {
	ctx, cancel := context.WithCancel(ctx)

	nop := zerolog.Nop()
	m := &Manager{
		factory:          factory,
		handshakeTimeout: DefaultHandshakeTimeout,
		log:              &nop,
		ctx:              ctx,
		cancel:           cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	conn, _, err := websocket.Dial(ctx, relayURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	m.conn = conn

	go m.readLoop()
	return m, nil
}

// OnSync registers the sync packet callback. Each slot holds a single
// subscriber; a second registration replaces the first.
func (m *Manager) OnSync(fn func(Packet)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSync = fn
}

// OnChat registers the chat message callback.
func (m *Manager) OnChat(fn func(Chat)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChat = fn
}

// OnMembersUpdate registers the member-name list callback.
func (m *Manager) OnMembersUpdate(fn func([]string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMembers = fn
}

// OnRoomError registers the room error callback.
func (m *Manager) OnRoomError(fn func(code string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRoomError = fn
}

// CreateRoom joins the relay room as its host and starts the peer channel
// as the connection-initiating side. Outcomes surface via the callbacks.
func (m *Manager) CreateRoom(roomID, userName string) error {
	return m.openSession(roomID, userName, true)
}

// JoinRoom joins an existing relay room and starts the peer channel as the
// responding side.
func (m *Manager) JoinRoom(roomID, userName string) error {
	return m.openSession(roomID, userName, false)
}

func (m *Manager) openSession(roomID, userName string, initiator bool) error {
	code := normalizeRoomCode(roomID)

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	if m.channel != nil {
		m.mu.Unlock()
		return ErrSessionStarted
	}
	m.isHost = initiator
	m.roomID = code
	m.mu.Unlock()

	ch, err := m.factory(initiator)
	if err != nil {
		return fmt.Errorf("create peer channel: %w", err)
	}
	m.bindChannel(ch, code)

	m.mu.Lock()
	m.channel = ch
	// The initiating side's offer would be lost while it is still alone
	// in the room, so its start waits for a second member to show up.
	m.pendingStart = initiator
	m.mu.Unlock()

	join, err := json.Marshal(proto.JoinData{RoomID: code, UserName: userName})
	if err != nil {
		return err
	}
	if err := m.send(proto.Inbound{Type: proto.InboundTypeJoin, Data: join}); err != nil {
		return err
	}

	if !initiator {
		m.armHandshakeTimer(ch, code)
		if err := ch.Start(m.ctx); err != nil {
			return fmt.Errorf("start peer channel: %w", err)
		}
	}
	m.log.Info().Str("room", code).Bool("host", initiator).Msg("session opened")
	return nil
}

func (m *Manager) armHandshakeTimer(ch peer.Channel, roomID string) {
	if m.handshakeTimeout <= 0 {
		return
	}
	m.mu.Lock()
	m.handshakeTimer = time.AfterFunc(m.handshakeTimeout, func() {
		if !ch.Connected() {
			m.log.Warn().Str("room", roomID).Msg("peer handshake timed out")
			m.emitRoomError(ErrCodePeerTimeout)
		}
	})
	m.mu.Unlock()
}

// bindChannel pipes the channel's signal blobs to the relay and its
// payloads into the callbacks. The manager holds no handshake state of its
// own; it only moves opaque blobs both directions.
func (m *Manager) bindChannel(ch peer.Channel, roomID string) {
	ch.OnSignal(func(blob []byte) {
		data, err := json.Marshal(proto.SignalData{RoomID: roomID, Signal: blob})
		if err != nil {
			m.log.Error().Err(err).Msg("marshal signal")
			return
		}
		if err := m.send(proto.Inbound{Type: proto.InboundTypeSignal, Data: data}); err != nil {
			m.log.Warn().Err(err).Msg("forward signal to relay")
		}
	})

	ch.OnConnect(func() {
		m.mu.Lock()
		if m.handshakeTimer != nil {
			m.handshakeTimer.Stop()
			m.handshakeTimer = nil
		}
		m.mu.Unlock()
		m.log.Info().Str("room", roomID).Msg("peer channel connected")
	})

	ch.OnData(func(data []byte) {
		m.handlePayload(data)
	})

	ch.OnClose(func(err error) {
		m.mu.Lock()
		destroyed := m.destroyed
		m.mu.Unlock()
		if destroyed {
			return
		}
		m.log.Warn().Err(err).Str("room", roomID).Msg("peer channel closed")
		m.emitRoomError(ErrCodePeerDisconnected)
	})
}

// handlePayload routes an inbound peer payload: CHAT to the chat callback,
// everything else to the sync callback.
func (m *Manager) handlePayload(data []byte) {
	pkt, err := Decode(data)
	if err != nil {
		m.log.Warn().Err(err).Msg("drop malformed packet")
		return
	}

	if chat, ok := pkt.(Chat); ok {
		m.mu.Lock()
		fn := m.onChat
		m.mu.Unlock()
		if fn != nil {
			fn(chat)
		}
		return
	}

	m.emitSync(pkt)
}

// SendChat serializes a chat message onto the peer channel. Dropped
// silently when the channel is not connected: at-most-once, best-effort.
func (m *Manager) SendChat(msg Chat) {
	m.Broadcast(msg)
}

// Broadcast sends any sync packet over the peer channel, with the same
// best-effort delivery contract as SendChat. Use Connected to find out
// whether sends currently reach the peer.
func (m *Manager) Broadcast(pkt Packet) {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()

	if ch == nil || !ch.Connected() {
		m.log.Debug().Str("event", string(pkt.Event())).Msg("drop packet, peer not connected")
		return
	}

	data, err := Encode(pkt)
	if err != nil {
		m.log.Error().Err(err).Msg("encode packet")
		return
	}
	if err := ch.Send(data); err != nil {
		m.log.Warn().Err(err).Msg("send packet")
	}
}

// Connected reports whether the peer channel currently delivers payloads.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	return ch != nil && ch.Connected()
}

// IsHost reports whether this session created its room.
func (m *Manager) IsHost() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isHost
}

// RoomID returns the normalized room code of the current session, empty
// before CreateRoom/JoinRoom.
func (m *Manager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// Destroy tears down the peer channel and the relay link and clears all
// callbacks. Safe to call more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	ch := m.channel
	m.channel = nil
	if m.handshakeTimer != nil {
		m.handshakeTimer.Stop()
		m.handshakeTimer = nil
	}
	m.onSync = nil
	m.onChat = nil
	m.onMembers = nil
	m.onRoomError = nil
	m.mu.Unlock()

	m.cancel()
	if ch != nil {
		_ = ch.Close()
	}
	_ = m.conn.Close(websocket.StatusNormalClosure, "destroyed")
	m.log.Info().Msg("session destroyed")
}

// readLoop consumes relay events until the link drops or the manager is
// destroyed.
func (m *Manager) readLoop() {
	for {
		var out struct {
			Type  string          `json:"type"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(m.ctx, m.conn, &out); err != nil {
			m.mu.Lock()
			destroyed := m.destroyed
			m.mu.Unlock()
			if destroyed || errors.Is(err, context.Canceled) {
				return
			}
			m.log.Warn().Err(err).Msg("relay link lost")
			m.emitRoomError(ErrCodeRelayDisconnected)
			return
		}
		m.handleRelayEvent(out.Type, out.Data, out.Error)
	}
}

func (m *Manager) handleRelayEvent(kind string, data json.RawMessage, protoErr *proto.Error) {
	switch kind {
	case proto.OutboundTypeSignal:
		var ev proto.SignalEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			m.log.Warn().Err(err).Msg("bad signal event")
			return
		}
		m.mu.Lock()
		ch := m.channel
		m.mu.Unlock()
		if ch == nil {
			m.log.Debug().Str("from", ev.From).Msg("signal before session start, dropped")
			return
		}
		if err := ch.Signal(ev.Signal); err != nil {
			m.log.Warn().Err(err).Str("from", ev.From).Msg("apply remote signal")
		}
	case proto.OutboundTypeMembers:
		var members []string
		if err := json.Unmarshal(data, &members); err != nil {
			m.log.Warn().Err(err).Msg("bad member list")
			return
		}

		m.mu.Lock()
		ch := m.channel
		start := m.pendingStart && len(members) > 1
		if start {
			m.pendingStart = false
		}
		room := m.roomID
		fn := m.onMembers
		m.mu.Unlock()

		if start && ch != nil {
			m.armHandshakeTimer(ch, room)
			if err := ch.Start(m.ctx); err != nil {
				m.log.Error().Err(err).Msg("start peer channel")
				m.emitRoomError(ErrCodePeerDisconnected)
			}
		}
		if fn != nil {
			fn(members)
		}
	case proto.OutboundTypeRoomError:
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			m.log.Warn().Err(err).Msg("bad room error")
			return
		}
		m.emitRoomError(code)
	case proto.OutboundTypeTerminated:
		// Never crosses the peer channel; manufactured here from the
		// relay signal.
		m.emitSync(SessionTerminated{Timestamp: time.Now().UnixMilli()})
	case proto.OutboundTypeError:
		if protoErr != nil {
			m.log.Warn().Str("code", protoErr.Code).Str("msg", protoErr.Msg).Msg("relay protocol error")
		}
	default:
		m.log.Warn().Str("type", kind).Msg("unknown relay event")
	}
}

func (m *Manager) emitSync(pkt Packet) {
	m.mu.Lock()
	fn := m.onSync
	m.mu.Unlock()
	if fn != nil {
		fn(pkt)
	}
}

func (m *Manager) emitRoomError(code string) {
	m.mu.Lock()
	fn := m.onRoomError
	m.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

func (m *Manager) send(v proto.Inbound) error {
	writeCtx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, m.conn, v)
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
