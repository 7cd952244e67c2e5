package transport

import (
	"encoding/json"
	"sync"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// Bus is the in-process delivery path between surfaces living in the same
// process. Dispatch is synchronous; handlers must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	origin   string
}

// NewBus returns a bus stamping published envelopes with origin.
func NewBus(origin string) *Bus {
	return &Bus{origin: origin}
}

// Subscribe registers h for every envelope published after this call.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// PublishFull delivers doc as a full-state envelope to every subscriber.
func (b *Bus) PublishFull(doc *match.Document) error {
	env, err := FullState(doc, b.origin)
	if err != nil {
		return err
	}
	b.dispatch(env)
	return nil
}

// PublishPatch delivers an already-encoded partial document.
func (b *Bus) PublishPatch(partial json.RawMessage) error {
	b.dispatch(Patch(partial, b.origin))
	return nil
}

func (b *Bus) dispatch(env Envelope) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}
