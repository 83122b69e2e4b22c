package core

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"testing"
	"time"
)

func TestHubFirstJoinBecomesHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "abcdef", Name: "Alice"}
	ev := mustEvent(t, alice.Events, EventRoomMembers)
	if !equalNames(ev.Members, []string{"Alice"}) {
		t.Fatalf("unexpected members after create: %v", ev.Members)
	}
	if ev.Room != "ABCDEF" {
		t.Fatalf("room code not normalized: %q", ev.Room)
	}

	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "ABCDEF", Name: "Bob"}

	// Both see the full list in join order; Alice keeps the host flag.
	evA := mustEvent(t, alice.Events, EventRoomMembers)
	evB := mustEvent(t, bob.Events, EventRoomMembers)
	want := []string{"Alice", "Bob"}
	if !equalNames(evA.Members, want) || !equalNames(evB.Members, want) {
		t.Fatalf("unexpected member lists: %v / %v", evA.Members, evB.Members)
	}

	// Bob leaving must not kill the room, proving he never became host.
	hub.UnregisterClient(bob)
	ev = mustEvent(t, alice.Events, EventRoomMembers)
	if !equalNames(ev.Members, []string{"Alice"}) {
		t.Fatalf("expected room to survive non-host leave, got %v", ev.Members)
	}
}

func TestHubSignalReachesOnlyRoomMates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	carol := NewClient("c")
	for _, c := range []*Client{alice, bob, carol} {
		hub.RegisterClient(c)
	}

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "ROOM1", Name: "Alice"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "ROOM1", Name: "Bob"}
	carol.Commands <- &Command{Kind: CommandJoinRoom, Room: "ROOM2", Name: "Carol"}
	mustEvent(t, alice.Events, EventRoomMembers) // create
	mustEvent(t, alice.Events, EventRoomMembers) // bob joined
	mustEvent(t, bob.Events, EventRoomMembers)
	mustEvent(t, carol.Events, EventRoomMembers)

	blob := json.RawMessage(`{"sdp":"fake-offer"}`)
	alice.Commands <- &Command{Kind: CommandRelaySignal, Room: "ROOM1", Signal: blob}

	ev := mustEvent(t, bob.Events, EventSignal)
	if ev.From != "a" {
		t.Fatalf("signal not tagged with sender id: %q", ev.From)
	}
	if string(ev.Signal) != string(blob) {
		t.Fatalf("signal not relayed verbatim: %s", ev.Signal)
	}

	// Sender and other rooms stay silent.
	mustNoEvent(t, alice.Events, 100*time.Millisecond)
	mustNoEvent(t, carol.Events, 100*time.Millisecond)
}

func TestHubHostDisconnectTerminatesAndBlacklists(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "ABCDEF", Name: "Alice"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "ABCDEF", Name: "Bob"}
	mustEvent(t, bob.Events, EventRoomMembers)

	hub.UnregisterClient(alice)
	mustEvent(t, bob.Events, EventSessionTerminated)

	// Carol joining the dead code gets SESSION_EXPIRED and nobody else
	// hears anything.
	carol := NewClient("c")
	hub.RegisterClient(carol)
	carol.Commands <- &Command{Kind: CommandJoinRoom, Room: "abcdef", Name: "Carol"}

	ev := mustEvent(t, carol.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodeSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED, got %+v", ev.Error)
	}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)

	stats := hub.Stats(ctx)
	if stats.Rooms != 0 || stats.DeadRooms != 1 {
		t.Fatalf("unexpected stats after termination: %+v", stats)
	}
}

func TestHubOrphanedMemberGetsNoFurtherEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "GONE", Name: "Alice"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "GONE", Name: "Bob"}
	mustEvent(t, bob.Events, EventRoomMembers)

	hub.UnregisterClient(alice)
	mustEvent(t, bob.Events, EventSessionTerminated)

	// A late signal addressed to the dead room vanishes.
	bob.Commands <- &Command{Kind: CommandRelaySignal, Room: "GONE", Signal: json.RawMessage(`{}`)}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)

	// Bob's own disconnect after orphaning must not panic or broadcast.
	hub.UnregisterClient(bob)
	stats := hub.Stats(ctx)
	if stats.Clients != 0 {
		t.Fatalf("expected no clients, got %+v", stats)
	}
}

func TestHubNonHostDisconnectUpdatesMembers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	bob := NewClient("b")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "STAY", Name: "Alice"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "STAY", Name: "Bob"}
	mustEvent(t, alice.Events, EventRoomMembers) // create
	mustEvent(t, alice.Events, EventRoomMembers) // bob joined

	hub.UnregisterClient(bob)

	ev := mustEvent(t, alice.Events, EventRoomMembers)
	if !equalNames(ev.Members, []string{"Alice"}) {
		t.Fatalf("expected Alice alone, got %v", ev.Members)
	}

	// Room stays live: the code is not blacklisted.
	stats := hub.Stats(ctx)
	if stats.Rooms != 1 || stats.DeadRooms != 0 {
		t.Fatalf("unexpected stats after member leave: %+v", stats)
	}
}

func TestHubSecondJoinIgnored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(8, nil)
	go hub.Run(ctx)

	alice := NewClient("a")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "ONE", Name: "Alice"}
	mustEvent(t, alice.Events, EventRoomMembers)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "TWO", Name: "Alice"}
	mustNoEvent(t, alice.Events, 100*time.Millisecond)

	stats := hub.Stats(ctx)
	if stats.Rooms != 1 {
		t.Fatalf("second join created a room: %+v", stats)
	}
}

func TestHubBlacklistEvictionReopensRoomCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Capacity of one: the second dead room evicts the first.
	hub := NewHub(1, nil)
	go hub.Run(ctx)

	for _, code := range []string{"FIRST", "SECOND"} {
		host := NewClient("host-" + code)
		hub.RegisterClient(host)
		host.Commands <- &Command{Kind: CommandJoinRoom, Room: code, Name: "Host"}
		mustEvent(t, host.Events, EventRoomMembers)
		hub.UnregisterClient(host)
	}

	// FIRST was evicted, so a new join under that code succeeds and the
	// caller becomes host of a fresh room.
	late := NewClient("late")
	hub.RegisterClient(late)
	late.Commands <- &Command{Kind: CommandJoinRoom, Room: "FIRST", Name: "Late"}
	ev := mustEvent(t, late.Events, EventRoomMembers)
	if !equalNames(ev.Members, []string{"Late"}) {
		t.Fatalf("expected fresh room for evicted code, got %v", ev.Members)
	}

	// SECOND is still blacklisted.
	other := NewClient("other")
	hub.RegisterClient(other)
	other.Commands <- &Command{Kind: CommandJoinRoom, Room: "SECOND", Name: "Other"}
	errEv := mustEvent(t, other.Events, EventRoomError)
	if errEv.Error == nil || errEv.Error.Code != ErrCodeSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED for still-listed code, got %+v", errEv.Error)
	}
}

func TestHubReleasesPumpGoroutines(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(16, nil)
	go hub.Run(ctx)

	before := runtime.NumGoroutine()

	const cycles = 200
	for i := 0; i < cycles; i++ {
		c := NewClient("conn" + strconv.Itoa(i))
		hub.RegisterClient(c)
		hub.UnregisterClient(c)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pump goroutines not released: before=%d after=%d", before, runtime.NumGoroutine())
}
