package peer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected = errors.New("peer channel not connected")
	ErrClosed       = errors.New("peer channel closed")
)

const dataChannelLabel = "sync"

// DefaultWebRTCConfig returns a configuration with a public STUN server.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// WebRTCChannel implements Channel over a pion data channel. ICE is vanilla
// (non-trickle): candidate gathering completes before the single offer or
// answer blob is emitted, so connection setup needs exactly one signaling
// round trip.
type WebRTCChannel struct {
	pc        *webrtc.PeerConnection
	initiator bool
	log       *zerolog.Logger

	mu        sync.Mutex
	dc        *webrtc.DataChannel
	connected bool
	closed    bool
	onSignal  func([]byte)
	onConnect func()
	onData    func([]byte)
	onClose   func(error)
}

// WebRTCOption tweaks WebRTCChannel construction.
type WebRTCOption func(*WebRTCChannel)

// WithChannelLogger attaches a logger; the default discards everything.
func WithChannelLogger(logger *zerolog.Logger) WebRTCOption {
	return func(c *WebRTCChannel) { c.log = logger }
}

// NewWebRTCChannel builds a channel on a fresh peer connection. The
// initiating side creates the data channel; the responding side waits for
// it to arrive with the offer.
func NewWebRTCChannel(cfg webrtc.Configuration, initiator bool, opts ...WebRTCOption) (*WebRTCChannel, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	nop := zerolog.Nop()
	c := &WebRTCChannel{pc: pc, initiator: initiator, log: &nop}
	for _, opt := range opts {
		opt(c)
	}

	if initiator {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		c.bindDataChannel(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			c.bindDataChannel(dc)
		})
	}

	return c, nil
}

// NewWebRTCFactory adapts a webrtc configuration into a channel Factory.
func NewWebRTCFactory(cfg webrtc.Configuration, opts ...WebRTCOption) Factory {
	return func(initiator bool) (Channel, error) {
		return NewWebRTCChannel(cfg, initiator, opts...)
	}
}

func (c *WebRTCChannel) OnSignal(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSignal = fn
}

func (c *WebRTCChannel) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

func (c *WebRTCChannel) OnData(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

func (c *WebRTCChannel) OnClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Start wires connection-state tracking and, on the initiating side,
// creates the offer. The offer blob is emitted once gathering completes.
func (c *WebRTCChannel) Start(ctx context.Context) error {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Debug().Str("state", s.String()).Msg("peer connection state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			c.fireClose(nil)
		}
	})

	if !c.initiator {
		return nil
	}

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}

	go func() {
		select {
		case <-gatherComplete:
		case <-ctx.Done():
			return
		}
		c.emitLocalDescription()
	}()

	return nil
}

// Signal accepts the remote side's blob: an offer on the responding side,
// an answer on the initiating side.
func (c *WebRTCChannel) Signal(data []byte) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return err
	}

	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	if c.initiator {
		return nil
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return err
	}

	go func() {
		<-gatherComplete
		c.emitLocalDescription()
	}()

	return nil
}

func (c *WebRTCChannel) Send(data []byte) error {
	c.mu.Lock()
	dc := c.dc
	connected := c.connected
	c.mu.Unlock()

	if !connected || dc == nil {
		return ErrNotConnected
	}
	return dc.Send(data)
}

func (c *WebRTCChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *WebRTCChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	err := c.pc.Close()
	c.emitClose(nil)
	return err
}

func (c *WebRTCChannel) bindDataChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		c.mu.Lock()
		c.connected = true
		fn := c.onConnect
		c.mu.Unlock()
		c.log.Debug().Str("label", dc.Label()).Msg("data channel open")
		if fn != nil {
			fn()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.mu.Lock()
		fn := c.onData
		c.mu.Unlock()
		if fn != nil {
			fn(msg.Data)
		}
	})

	dc.OnClose(func() {
		c.fireClose(nil)
	})
}

func (c *WebRTCChannel) emitLocalDescription() {
	desc := c.pc.LocalDescription()
	if desc == nil {
		return
	}
	blob, err := json.Marshal(desc)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal local description")
		return
	}
	c.mu.Lock()
	fn := c.onSignal
	c.mu.Unlock()
	if fn != nil {
		fn(blob)
	}
}

// fireClose marks the channel closed and emits the close callback once.
func (c *WebRTCChannel) fireClose(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()
	c.emitClose(err)
}

// emitClose delivers the close callback at most once.
func (c *WebRTCChannel) emitClose(err error) {
	c.mu.Lock()
	fn := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
