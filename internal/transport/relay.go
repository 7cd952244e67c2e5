package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

const relayReconnectDelay = 2 * time.Second

// RelayClient maintains a connection to the optional relay service. The
// relay broadcasts every frame to every peer including the sender, so the
// client stamps outgoing envelopes with its own identity and drops echoes.
// A missing or unreachable relay is a quiet degradation, never an error
// surfaced to operators; the storage path still carries updates.
type RelayClient struct {
	url      string
	identity string
	logger   *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers []Handler

	// writeMu serializes WriteMessage calls; gorilla connections allow at
	// most one concurrent writer.
	writeMu sync.Mutex
}

// NewRelayClient returns a client for the relay at url. A random identity is
// minted per process so two surfaces sharing one relay stay distinguishable.
func NewRelayClient(url string, logger *zap.Logger) *RelayClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayClient{
		url:      url,
		identity: uuid.NewString(),
		logger:   logger,
	}
}

// Identity returns the origin stamp used on outgoing envelopes.
func (c *RelayClient) Identity() string { return c.identity }

// Subscribe registers h for envelopes received from peers.
func (c *RelayClient) Subscribe(h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// Run dials the relay and reads frames until ctx is done, reconnecting with
// a fixed delay after any failure.
func (c *RelayClient) Run(ctx context.Context) {
	if c.url == "" {
		return
	}
	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("relay session ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayReconnectDelay):
		}
	}
}

func (c *RelayClient) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info("relay connected", zap.String("url", c.url))

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := Decode(frame)
		if err != nil {
			// Peers may share the relay with unrelated tooling; drop
			// anything that is not ours.
			continue
		}
		if env.Origin == c.identity {
			continue
		}
		c.mu.Lock()
		handlers := make([]Handler, len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.Unlock()
		for _, h := range handlers {
			h(env)
		}
	}
}

// PublishFull sends doc to peers. Returns nil while disconnected; relay
// delivery is best effort.
func (c *RelayClient) PublishFull(doc *match.Document) error {
	env, err := FullState(doc, c.identity)
	if err != nil {
		return err
	}
	c.send(env)
	return nil
}

// PublishPatch sends a partial document to peers.
func (c *RelayClient) PublishPatch(partial json.RawMessage) error {
	c.send(Patch(partial, c.identity))
	return nil
}

func (c *RelayClient) send(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Debug("relay write failed", zap.Error(err))
	}
}
