// Package store holds the authoritative in-memory match document and runs
// every mutation through one serialized path: copy, transform, normalize,
// persist, broadcast.
package store

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/reconcile"
	"github.com/tcgoverlay/overlay-server-go/internal/rules"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

// Persister saves the authoritative document after each mutation.
type Persister interface {
	Save(doc *match.Document) error
}

// Store serializes access to the authoritative document.
type Store struct {
	mu        sync.RWMutex
	doc       *match.Document
	persister Persister
	publisher transport.Publisher
	logger    *zap.Logger
}

// New returns a store seeded with doc. Persister and publisher may be nil
// for tests that only exercise the mutation path.
func New(doc *match.Document, persister Persister, publisher transport.Publisher, logger *zap.Logger) *Store {
	if doc == nil {
		doc = match.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	doc.Normalize()
	return &Store{
		doc:       doc,
		persister: persister,
		publisher: publisher,
		logger:    logger,
	}
}

// Snapshot returns an independent copy of the current document.
func (s *Store) Snapshot() *match.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Mutate applies transform to a copy of the current document. If the
// transform fails nothing changes. On success the normalized result becomes
// authoritative, gets persisted, and is broadcast as a full state. Persist
// and broadcast run while the mutation lock is held, so concurrent
// mutations reach the slot and the feed in commit order and the last write
// everywhere is the authoritative document. A persist failure is logged but
// does not block the broadcast; a live viewer beats a stale disk file.
func (s *Store) Mutate(transform rules.Transform) (*match.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc.Clone()
	if err := transform(next); err != nil {
		return nil, err
	}
	next.Normalize()
	s.doc = next
	out := next.Clone()
	s.persistAndPublish(out)
	return out, nil
}

// ApplyRemote merges an incoming envelope from another surface into the
// authoritative document. The merged result is persisted but not re-broadcast
// on the originating path; the server's own feed fans it out.
func (s *Store) ApplyRemote(env transport.Envelope) (*match.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := reconcile.Apply(s.doc, env)
	if err != nil {
		return nil, err
	}
	merged.Normalize()
	s.doc = merged
	out := merged.Clone()
	s.persistAndPublish(out)
	return out, nil
}

// ApplyPatch merges a raw partial document, as received from an intent
// surface that edits fields directly instead of going through an operation.
func (s *Store) ApplyPatch(partial json.RawMessage) (*match.Document, error) {
	return s.ApplyRemote(transport.Patch(partial, ""))
}

// Replace installs doc wholesale, for confirmed full resets.
func (s *Store) Replace(doc *match.Document) *match.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := doc.Clone()
	next.Normalize()
	s.doc = next
	out := next.Clone()
	s.persistAndPublish(out)
	return out
}

// persistAndPublish is called with the mutation lock held.
func (s *Store) persistAndPublish(doc *match.Document) {
	if s.persister != nil {
		if err := s.persister.Save(doc); err != nil {
			s.logger.Warn("persist state failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFull(doc); err != nil {
			s.logger.Warn("broadcast state failed", zap.Error(err))
		}
	}
}
