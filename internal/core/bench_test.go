package core

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
)

func benchmarkSignalFanout(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(16, nil)
	go hub.Run(ctx)

	sender := NewClient("sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoinRoom, Room: "BENCH", Name: "sender"}

	clients := make([]*Client, 0, recipients)
	for i := 0; i < recipients; i++ {
		c := NewClient("c" + strconv.Itoa(i))
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoinRoom, Room: "BENCH", Name: "client"}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	go func() {
		for range sender.Events {
		}
	}()

	blob := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	// Probe once so the membership churn from setup is flushed before
	// the timer starts.
	sender.Commands <- &Command{Kind: CommandRelaySignal, Room: "BENCH", Signal: blob}
	for ev := <-target.Events; ev.Kind != EventSignal; ev = <-target.Events {
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:   CommandRelaySignal,
			Room:   "BENCH",
			Signal: blob,
		}
		for ev := <-target.Events; ev.Kind != EventSignal; ev = <-target.Events {
		}
	}
}

func BenchmarkSignalFanout_10(b *testing.B)  { benchmarkSignalFanout(b, 10) }
func BenchmarkSignalFanout_100(b *testing.B) { benchmarkSignalFanout(b, 100) }
func BenchmarkSignalFanout_500(b *testing.B) { benchmarkSignalFanout(b, 500) }
