package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout    = 10 * time.Second
	redialInterval = 3 * time.Second
)

// ErrNotConnected is returned by Emit while the channel is down.
var ErrNotConnected = errors.New("push: not connected")

// Client maintains a connection to the dashboard push channel and delivers
// every event, in arrival order, on a single channel. Synthetic connect and
// disconnect events bracket each underlying connection so consumers observe
// the full status sequence with nothing skipped.
type Client struct {
	url    string
	log    *slog.Logger
	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a channel client for the given websocket URL.
func NewClient(url string, log *slog.Logger) *Client {
	return &Client{
		url:    url,
		log:    log,
		events: make(chan Event, 256),
	}
}

// Events is the ordered stream of inbound events, including the synthetic
// connect/disconnect markers. The channel is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run dials the channel and pumps events until ctx is cancelled. Lost
// connections are redialed after a short delay; reconnection policy beyond
// that is deliberately not the dashboard's concern.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	for {
		if err := c.runOnce(ctx); err != nil {
			c.log.Warn("push channel connection lost", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redialInterval):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.Info("push channel connected", "url", c.url)
	c.deliver(Event{Type: EventConnect})

	// Close the connection when ctx ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			conn.Close()
			c.deliver(Event{Type: EventDisconnect})
			return err
		}
		c.deliver(evt)
	}
}

// Emit sends an event to the server. It fails when the channel is down.
func (c *Client) Emit(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(evt)
}

// deliver never blocks the read loop: a stalled consumer loses the
// oldest pending events; order among delivered events is preserved.
func (c *Client) deliver(evt Event) {
	for {
		select {
		case c.events <- evt:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}
