package push

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Matches the order-book depth pushed upstream; anything bigger is a
	// decode error, not a legitimate request.
	maxInboundMessageSize = 4096
)

// InboundHandler reacts to a client request. reply delivers events to the
// requesting client only; broadcasts go through Hub.Broadcast.
type InboundHandler func(evt Event, reply func(Event))

// Hub manages the set of connected dashboard clients and fans events out
// to all of them.
type Hub struct {
	log      *slog.Logger
	inbound  InboundHandler
	upgrader websocket.Upgrader

	clients    map[*hubClient]bool
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan Event
	done       chan struct{}
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn

	// mu guards send against the race between a reply from the read
	// goroutine and the hub loop closing the queue when it drops the
	// client. Only drop closes the channel.
	mu     sync.Mutex
	send   chan Event
	closed bool
}

// enqueue hands evt to the client's write pump. It reports false when the
// queue is full or the client has already been dropped.
func (c *hubClient) enqueue(evt Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// drop closes the send queue exactly once. Called from the hub loop only.
func (c *hubClient) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// NewHub creates a hub. The inbound handler may be nil, in which case
// client requests are dropped.
func NewHub(log *slog.Logger, inbound InboundHandler) *Hub {
	return &Hub{
		log:     log,
		inbound: inbound,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard API is open to any origin, as is the REST side.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It should be launched as a goroutine and
// exits when ctx is cancelled, closing every client connection. After it
// returns, new connections and pump goroutines unblock via done instead
// of waiting on the loop.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Info("dashboard client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.drop()
				h.log.Info("dashboard client disconnected", "clients", len(h.clients))
			}
		case evt := <-h.broadcast:
			for c := range h.clients {
				if !c.enqueue(evt) {
					// Slow client, drop it rather than block the fan-out.
					delete(h.clients, c)
					c.drop()
				}
			}
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.drop()
			}
			return
		}
	}
}

// Broadcast queues an event for delivery to every connected client.
// Events are dropped when the hub's queue is full.
func (h *Hub) Broadcast(evt Event) {
	select {
	case h.broadcast <- evt:
	default:
		h.log.Warn("push broadcast queue full, dropping event", "type", evt.Type)
	}
}

// ServeHTTP upgrades the connection and registers the client with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &hubClient{hub: h, conn: conn, send: make(chan Event, 64)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var evt Event
		if err := c.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("client read error", "error", err)
			}
			return
		}
		if c.hub.inbound != nil {
			c.hub.inbound(evt, c.reply)
		}
	}
}

// reply queues an event for this client only. Replies to a client that
// has been dropped, or whose queue is full, are discarded.
func (c *hubClient) reply(evt Event) {
	c.enqueue(evt)
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
