// The relay is a dumb message forwarder: any client may connect, and every
// parseable JSON text frame is broadcast verbatim to every other connected
// peer. The sender never hears its own frames back. All routing
// intelligence lives in the clients.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var addr = flag.String("addr", ":8713", "listen address")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// message pairs a frame with its originating client so the broadcast loop
// can skip the sender.
type message struct {
	from  *client
	frame []byte
}

type hub struct {
	clients    map[*client]bool
	broadcast  chan message
	register   chan *client
	unregister chan *client
	logger     *zap.Logger
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("peer connected", zap.Int("peers", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("peer disconnected", zap.Int("peers", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if c == msg.from {
					continue
				}
				select {
				case c.send <- msg.frame:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

func (c *client) readPump(h *hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// Forward only frames that are JSON at all; everything else is
		// noise from misdirected clients.
		if !json.Valid(frame) {
			continue
		}
		h.broadcast <- message{from: c, frame: frame}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			break
		}
	}
}

func serveWS(h *hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	h := newHub(logger)
	go h.run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(h, w, r)
	})

	logger.Info("relay listening", zap.String("address", *addr))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
}
