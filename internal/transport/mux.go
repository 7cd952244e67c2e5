package transport

import (
	"encoding/json"
	"sync"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// Mux ties the redundant delivery paths together. Outbound, one publish
// fans out to every configured path plus the in-process feed subscribers.
// Inbound, envelopes from attached paths funnel into one handler set,
// kept separate from the feed so the authoritative consumer never hears
// its own publishes back. The same update may arrive on more than one
// path; consumers rely on merge idempotence rather than deduplication.
type Mux struct {
	publishers []Publisher
	feed       *Bus

	mu      sync.RWMutex
	inbound []Handler
}

// NewMux returns a mux publishing through each of pubs.
func NewMux(pubs ...Publisher) *Mux {
	return &Mux{publishers: pubs, feed: NewBus("")}
}

// Attach funnels sub's envelopes into the inbound handler set.
func (m *Mux) Attach(sub Subscriber) {
	sub.Subscribe(func(env Envelope) {
		m.mu.RLock()
		handlers := make([]Handler, len(m.inbound))
		copy(handlers, m.inbound)
		m.mu.RUnlock()
		for _, h := range handlers {
			h(env)
		}
	})
}

// SubscribeInbound registers h for envelopes arriving from attached paths.
func (m *Mux) SubscribeInbound(h Handler) {
	m.mu.Lock()
	m.inbound = append(m.inbound, h)
	m.mu.Unlock()
}

// Subscribe registers h on the feed side, delivering every local publish.
func (m *Mux) Subscribe(h Handler) {
	m.feed.Subscribe(h)
}

// PublishFull sends doc down every path. Individual path failures do not
// stop the remaining paths; the first error is returned for logging.
func (m *Mux) PublishFull(doc *match.Document) error {
	first := m.feed.PublishFull(doc)
	for _, p := range m.publishers {
		if err := p.PublishFull(doc); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishPatch sends a partial document down every path.
func (m *Mux) PublishPatch(partial json.RawMessage) error {
	first := m.feed.PublishPatch(partial)
	for _, p := range m.publishers {
		if err := p.PublishPatch(partial); err != nil && first == nil {
			first = err
		}
	}
	return first
}
