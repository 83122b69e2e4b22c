package peer

import (
	"context"
	"errors"
	"testing"
	"time"
)

// connectPipes runs the offer/answer handshake between two fresh endpoints,
// forwarding each signal blob directly to the other end.
func connectPipes(t *testing.T) (Channel, Channel) {
	t.Helper()

	network := NewPipeNetwork()
	factory := network.Factory()

	host, err := factory(true)
	if err != nil {
		t.Fatalf("create host end: %v", err)
	}
	guest, err := factory(false)
	if err != nil {
		t.Fatalf("create guest end: %v", err)
	}

	hostUp := make(chan struct{}, 1)
	guestUp := make(chan struct{}, 1)
	host.OnConnect(func() { hostUp <- struct{}{} })
	guest.OnConnect(func() { guestUp <- struct{}{} })

	signals := make(chan []byte, 4)
	host.OnSignal(func(blob []byte) { signals <- blob })
	guest.OnSignal(func(blob []byte) { signals <- blob })

	ctx := context.Background()
	if err := guest.Start(ctx); err != nil {
		t.Fatalf("start guest: %v", err)
	}
	if err := host.Start(ctx); err != nil {
		t.Fatalf("start host: %v", err)
	}

	// Offer from the host, answer from the guest.
	if err := guest.Signal(<-signals); err != nil {
		t.Fatalf("deliver offer: %v", err)
	}
	if err := host.Signal(<-signals); err != nil {
		t.Fatalf("deliver answer: %v", err)
	}

	for _, up := range []chan struct{}{hostUp, guestUp} {
		select {
		case <-up:
		case <-time.After(time.Second):
			t.Fatal("endpoint never connected")
		}
	}

	t.Cleanup(func() {
		host.Close()
		guest.Close()
	})
	return host, guest
}

func TestPipeHandshakeConnectsBothEnds(t *testing.T) {
	host, guest := connectPipes(t)

	if !host.Connected() || !guest.Connected() {
		t.Fatal("expected both ends connected after handshake")
	}
}

func TestPipeDeliversDataInOrder(t *testing.T) {
	host, guest := connectPipes(t)

	received := make(chan string, 8)
	guest.OnData(func(data []byte) { received <- string(data) })

	want := []string{"one", "two", "three"}
	for _, msg := range want {
		if err := host.Send([]byte(msg)); err != nil {
			t.Fatalf("send %q: %v", msg, err)
		}
	}

	for _, msg := range want {
		select {
		case got := <-received:
			if got != msg {
				t.Fatalf("out of order: got %q, want %q", got, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", msg)
		}
	}
}

func TestPipeSendBeforeConnect(t *testing.T) {
	network := NewPipeNetwork()
	ch, err := network.Factory()(true)
	if err != nil {
		t.Fatalf("create end: %v", err)
	}
	defer ch.Close()

	if err := ch.Send([]byte("early")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestPipeClosePropagates(t *testing.T) {
	host, guest := connectPipes(t)

	closed := make(chan error, 1)
	guest.OnClose(func(err error) { closed <- err })

	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-closed:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed on remote teardown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("remote end never observed the close")
	}

	if guest.Connected() {
		t.Fatal("remote end still reports connected")
	}
	if err := guest.Send([]byte("late")); err == nil {
		t.Fatal("expected error sending after close")
	}
}
