package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// MessageType discriminates the two wire shapes shared by every delivery
// path.
type MessageType string

const (
	// MessageFullState carries the entire authoritative document.
	MessageFullState MessageType = "fullState"
	// MessagePatch carries a partial document to be merged by the reader.
	MessagePatch MessageType = "patch"
)

// Envelope is the cross-surface message contract. The same JSON shape
// travels over the in-process bus, the persisted-storage slot and the relay
// socket. Origin identifies the publishing surface so a client sharing a
// relay with itself can drop its own echoes; it is advisory and absent on
// storage-path updates.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
}

// FullState builds a full-state envelope for doc.
func FullState(doc *match.Document, origin string) (Envelope, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode document: %w", err)
	}
	return Envelope{Type: MessageFullState, Payload: payload, Origin: origin}, nil
}

// Patch builds a patch envelope from an already-encoded partial document.
func Patch(partial json.RawMessage, origin string) Envelope {
	return Envelope{Type: MessagePatch, Payload: partial, Origin: origin}
}

// Decode parses a raw frame into an envelope. Frames that are not valid
// JSON or carry an unknown type are rejected so callers can drop them
// without touching local state.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type != MessageFullState && env.Type != MessagePatch {
		return Envelope{}, fmt.Errorf("unknown message type %q", env.Type)
	}
	return env, nil
}

// Handler consumes messages delivered by any transport path.
type Handler func(Envelope)

// Subscriber is the reader side of a delivery path.
type Subscriber interface {
	Subscribe(h Handler)
}

// Publisher is the writer side of a delivery path.
type Publisher interface {
	PublishFull(doc *match.Document) error
	PublishPatch(partial json.RawMessage) error
}
