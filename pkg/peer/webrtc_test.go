package peer

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestWebRTCFactoryBuildsBothSides(t *testing.T) {
	logger := zerolog.Nop()
	factory := NewWebRTCFactory(DefaultWebRTCConfig(), WithChannelLogger(&logger))

	for _, initiator := range []bool{true, false} {
		ch, err := factory(initiator)
		if err != nil {
			t.Fatalf("factory(initiator=%v): %v", initiator, err)
		}
		if ch.Connected() {
			t.Fatal("fresh channel must not report connected")
		}
		if err := ch.Send([]byte("early")); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected before handshake, got %v", err)
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
	}
}
