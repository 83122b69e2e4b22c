package core

// Client is one live relay connection as seen by the core layer.
// Room membership fields are owned by the hub goroutine and must not be
// touched by transports.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// done is closed by the hub on unregister so the client's pump
	// goroutine exits.
	done chan struct{}

	name   string
	room   string
	isHost bool
}

// NewClient constructs a client with initialized channels. The id is the
// connection identity used to tag relayed signal blobs.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 16),
		done:     make(chan struct{}),
	}
}

func (c *Client) deliver(ev *Event) {
	select {
	case c.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}
