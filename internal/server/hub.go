package server

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"pouch-go/internal/pouch"
)

// ProgressEvent is the wire shape of one progress update pushed to UI
// clients.
type ProgressEvent struct {
	Category string  `json:"category"`
	Done     int     `json:"done"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Overall  float64 `json:"overall"`
	Final    bool    `json:"final"`
}

// hubClient is one connected UI client.
type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ProgressHub fans progress events out to connected websocket clients.
// Clients whose send buffer is full miss updates rather than stalling the
// download path.
type ProgressHub struct {
	clients    map[*hubClient]bool
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte
	done       chan struct{}
	logger     pouch.Logger
}

func NewProgressHub(logger pouch.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *ProgressHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("progress client connected", "client", client.id)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("progress client disconnected", "client", client.id)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop the update. The next one carries
					// fresher numbers anyway.
				}
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Stop terminates the hub loop and disconnects every client.
func (h *ProgressHub) Stop() {
	close(h.done)
}

// Publish queues a progress event for every connected client. Never blocks
// the caller.
func (h *ProgressHub) Publish(ev ProgressEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message:
	default:
	}
}

// drop hands a client to the hub loop for removal. Once the hub has stopped
// nobody drains the unregister channel, so a dropping client must not wait
// on it.
func (h *ProgressHub) drop(c *hubClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// writePump drains the client's send channel onto its connection. Exits when
// the channel closes or a write fails.
func (c *hubClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readPump discards inbound messages until the connection drops, then
// unregisters the client.
func (c *hubClient) readPump(h *ProgressHub) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
