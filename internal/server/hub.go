package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The feed serves local browser sources; any origin may read.
		return true
	},
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the authoritative document out to every connected feed client.
type Hub struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	// done is closed when Run exits so client goroutines still trying to
	// register or unregister do not block forever.
	done   chan struct{}
	logger *zap.Logger
}

// NewHub returns a hub with no clients.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run services the hub until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("feed client connected",
				zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("feed client disconnected",
					zap.Int("clients", len(h.clients)))
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastDocument sends doc to every client as a full-state envelope.
func (h *Hub) BroadcastDocument(doc *match.Document) {
	env, err := transport.FullState(doc, "")
	if err != nil {
		h.logger.Warn("encode feed frame failed", zap.Error(err))
		return
	}
	h.broadcastEnvelope(env)
}

func (h *Hub) broadcastEnvelope(env transport.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("encode feed frame failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("feed broadcast queue full, dropping frame")
	}
}

// ServeWS upgrades the request and registers the client. The current
// document is queued first so new readers render immediately.
func (h *Hub) ServeWS(snapshot func() *match.Document) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("feed upgrade failed", zap.Error(err))
			return
		}

		client := &feedClient{
			conn: conn,
			send: make(chan []byte, 256),
		}

		if env, err := transport.FullState(snapshot(), ""); err == nil {
			if frame, err := json.Marshal(env); err == nil {
				client.send <- frame
			}
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump(h)
	}
}

// readPump drains the connection so pings and closes are processed. The
// feed is one way; incoming frames are ignored.
func (c *feedClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *feedClient) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			break
		}
	}
}
