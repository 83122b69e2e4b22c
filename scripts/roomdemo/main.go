// Command roomdemo is a terminal client for a peersync session: create or
// join a room, chat, and emit playback events by hand.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peersync/peersync/pkg/peer"
	"github.com/peersync/peersync/pkg/session"
)

func main() {
	if err := run(); err != nil {
		log.Printf("roomdemo: %v", err)
		os.Exit(1)
	}
}

func run() error {
	relay := flag.String("relay", "ws://localhost:9000/ws", "relay WebSocket address")
	user := flag.String("user", "cli-user", "display name")
	room := flag.String("room", "MOVIE-NIGHT-42", "room code")
	create := flag.Bool("create", false, "create the room (host) instead of joining")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := peer.NewWebRTCFactory(peer.DefaultWebRTCConfig())
	mgr, err := session.New(ctx, *relay, factory)
	if err != nil {
		return err
	}
	defer mgr.Destroy()

	mgr.OnMembersUpdate(func(names []string) {
		fmt.Printf("* members: %s\n", strings.Join(names, ", "))
	})
	mgr.OnChat(func(msg session.Chat) {
		fmt.Printf("[%s] %s\n", msg.User, msg.Text)
	})
	mgr.OnSync(func(pkt session.Packet) {
		switch p := pkt.(type) {
		case session.Playback:
			fmt.Printf("* %s at %.1fs\n", p.Kind, p.CurrentTime)
		case session.PermissionUpdate:
			fmt.Printf("* authorized: %s\n", strings.Join(p.Names, ", "))
		case session.SessionTerminated:
			fmt.Println("* host left, session over")
			stop()
		}
	})
	mgr.OnRoomError(func(code string) {
		fmt.Printf("* room error: %s\n", code)
		stop()
	})

	if *create {
		err = mgr.CreateRoom(*room, *user)
	} else {
		err = mgr.JoinRoom(*room, *user)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *relay, *user, mgr.RoomID())
	fmt.Println("Type a message to chat, or /play /pause /seek <s> /grant <name,...>. Ctrl+C to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			handleLine(mgr, *user, strings.TrimSpace(line))
		}
	}
}

func handleLine(mgr *session.Manager, user, line string) {
	if line == "" {
		return
	}
	now := time.Now().UnixMilli()

	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/play":
		mgr.Broadcast(session.Playback{Kind: session.EventPlay, Timestamp: now})
	case "/pause":
		mgr.Broadcast(session.Playback{Kind: session.EventPause, Timestamp: now})
	case "/seek":
		pos, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			fmt.Println("* usage: /seek <seconds>")
			return
		}
		mgr.Broadcast(session.Playback{Kind: session.EventSeek, Timestamp: now, CurrentTime: pos})
	case "/grant":
		names := strings.Split(rest, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		mgr.Broadcast(session.PermissionUpdate{Timestamp: now, Names: names})
	default:
		mgr.SendChat(session.Chat{User: user, Text: line, Timestamp: now})
	}
}
