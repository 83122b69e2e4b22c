package peer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// PipeNetwork links channel endpoints created in the same process. The two
// ends find each other through the signal blobs themselves, so the full
// offer/answer round trip through a relay is exercised without any real
// network transport. Intended for tests and demos.
type PipeNetwork struct {
	mu      sync.Mutex
	pending map[string]*PipeChannel
}

// NewPipeNetwork creates an empty pipe network.
func NewPipeNetwork() *PipeNetwork {
	return &PipeNetwork{pending: make(map[string]*PipeChannel)}
}

// Factory returns a channel Factory producing endpoints on this network.
func (n *PipeNetwork) Factory() Factory {
	return func(initiator bool) (Channel, error) {
		return &PipeChannel{
			network:   n,
			initiator: initiator,
			id:        uuid.NewString(),
			inbox:     make(chan []byte, 64),
			done:      make(chan struct{}),
		}, nil
	}
}

// pipeSignal is the handshake blob a pipe endpoint emits; kind is "offer"
// from the initiator, "answer" from the responder. The id pairs the two
// ends inside the network.
type pipeSignal struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// PipeChannel is one end of an in-process pipe.
type PipeChannel struct {
	network   *PipeNetwork
	initiator bool
	id        string
	inbox     chan []byte
	done      chan struct{}

	mu        sync.Mutex
	peer      *PipeChannel
	connected bool
	closed    bool
	onSignal  func([]byte)
	onConnect func()
	onData    func([]byte)
	onClose   func(error)
}

func (p *PipeChannel) OnSignal(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSignal = fn
}

func (p *PipeChannel) OnConnect(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConnect = fn
}

func (p *PipeChannel) OnData(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onData = fn
}

func (p *PipeChannel) OnClose(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = fn
}

// Start registers the initiating end with the network and emits its offer;
// the responding end just begins delivering inbound payloads.
func (p *PipeChannel) Start(ctx context.Context) error {
	go p.deliverLoop(ctx)

	if !p.initiator {
		return nil
	}

	p.network.mu.Lock()
	p.network.pending[p.id] = p
	p.network.mu.Unlock()

	p.emitSignal(pipeSignal{Kind: "offer", ID: p.id})
	return nil
}

// Signal completes the handshake: the responder links against the offer's
// id and answers; the initiator connects both ends on the answer.
func (p *PipeChannel) Signal(data []byte) error {
	var sig pipeSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return err
	}

	switch sig.Kind {
	case "offer":
		if p.initiator {
			return errors.New("pipe: initiator received an offer")
		}
		p.network.mu.Lock()
		other, ok := p.network.pending[sig.ID]
		if ok {
			delete(p.network.pending, sig.ID)
		}
		p.network.mu.Unlock()
		if !ok {
			return errors.New("pipe: no pending offer " + sig.ID)
		}
		p.mu.Lock()
		p.peer = other
		p.mu.Unlock()
		other.mu.Lock()
		other.peer = p
		other.mu.Unlock()
		p.emitSignal(pipeSignal{Kind: "answer", ID: sig.ID})
	case "answer":
		if !p.initiator {
			return errors.New("pipe: responder received an answer")
		}
		p.mu.Lock()
		other := p.peer
		p.mu.Unlock()
		if other == nil {
			return errors.New("pipe: answer before link")
		}
		p.markConnected()
		other.markConnected()
	default:
		return errors.New("pipe: unknown signal kind " + sig.Kind)
	}
	return nil
}

func (p *PipeChannel) Send(data []byte) error {
	p.mu.Lock()
	other := p.peer
	connected := p.connected
	p.mu.Unlock()

	if !connected || other == nil {
		return ErrNotConnected
	}

	// Copy so the caller can reuse its buffer.
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case other.inbox <- buf:
		return nil
	case <-other.done:
		return ErrClosed
	}
}

func (p *PipeChannel) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *PipeChannel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.connected = false
	other := p.peer
	onClose := p.onClose
	p.onClose = nil
	p.mu.Unlock()

	close(p.done)

	p.network.mu.Lock()
	delete(p.network.pending, p.id)
	p.network.mu.Unlock()

	if onClose != nil {
		onClose(nil)
	}
	if other != nil {
		other.peerClosed()
	}
	return nil
}

// peerClosed tears down this end after the remote end went away.
func (p *PipeChannel) peerClosed() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.connected = false
	onClose := p.onClose
	p.onClose = nil
	p.mu.Unlock()

	close(p.done)
	if onClose != nil {
		onClose(ErrClosed)
	}
}

func (p *PipeChannel) deliverLoop(ctx context.Context) {
	for {
		select {
		case data := <-p.inbox:
			p.mu.Lock()
			fn := p.onData
			p.mu.Unlock()
			if fn != nil {
				fn(data)
			}
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *PipeChannel) markConnected() {
	p.mu.Lock()
	if p.connected || p.closed {
		p.mu.Unlock()
		return
	}
	p.connected = true
	fn := p.onConnect
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *PipeChannel) emitSignal(sig pipeSignal) {
	blob, _ := json.Marshal(sig)
	p.mu.Lock()
	fn := p.onSignal
	p.mu.Unlock()
	if fn != nil {
		fn(blob)
	}
}
