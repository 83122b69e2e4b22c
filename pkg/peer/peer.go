// Package peer abstracts the direct, relay-independent transport between
// two session participants. A Channel is established through an
// offer/answer exchange of opaque signal blobs carried out of band (the
// signaling relay), then moves byte payloads point to point.
package peer

import "context"

// Channel is a point-to-point data channel. Callbacks must be registered
// before Start; the implementation may emit signal blobs as soon as setup
// begins.
type Channel interface {
	// Start begins connection setup. On the initiating side this produces
	// the first signal blob via the OnSignal callback.
	Start(ctx context.Context) error

	// Signal feeds a signal blob received from the remote side into the
	// local handshake.
	Signal(data []byte) error

	// Send transmits an opaque payload to the remote side. It fails when
	// the channel is not connected.
	Send(data []byte) error

	// Connected reports whether payloads can currently be sent.
	Connected() bool

	// Close tears the channel down. Safe to call more than once.
	Close() error

	// OnSignal registers the sink for locally produced signal blobs.
	OnSignal(fn func(data []byte))
	// OnConnect fires once when the channel becomes usable.
	OnConnect(fn func())
	// OnData receives remote payloads once connected.
	OnData(fn func(data []byte))
	// OnClose fires when the channel ends, with a non-nil error for
	// abnormal termination.
	OnClose(fn func(err error))
}

// Factory builds one channel per session. The initiating side creates the
// offer; the responding side answers.
type Factory func(initiator bool) (Channel, error)
