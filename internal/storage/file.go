// Package storage owns the persisted state slot: a single JSON document on
// disk shared across surface processes. It is always written as one atomic
// whole-document serialization, and readers treat malformed content as "no
// update" rather than an error.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// Slot is a file-backed persisted document slot.
type Slot struct {
	path   string
	logger *zap.Logger
}

// NewSlot returns a slot persisting to path.
func NewSlot(path string, logger *zap.Logger) *Slot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slot{path: path, logger: logger}
}

// Path returns the slot's file path, for change watchers.
func (s *Slot) Path() string { return s.path }

// Save serializes the whole document and writes it atomically: a temp file
// in the same directory followed by a rename, so a concurrent reader never
// observes a partial document.
func (s *Slot) Save(doc *match.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads the persisted document. A missing file or malformed content
// yields the session defaults without an error; only genuine I/O trouble
// on an existing file is reported.
func (s *Slot) Load() (*match.Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return match.Default(), nil
	}
	if err != nil {
		return match.Default(), fmt.Errorf("read state: %w", err)
	}
	doc, ok := Decode(data)
	if !ok {
		s.logger.Warn("persisted state malformed, using defaults",
			zap.String("path", s.path))
		return match.Default(), nil
	}
	return doc, nil
}

// Decode parses a raw persisted value. The boolean is false when the value
// is not a usable document; callers must treat that as "no update".
func Decode(data []byte) (*match.Document, bool) {
	var doc match.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	if doc.Left == nil {
		doc.Left = match.EmptyPlayer()
	}
	if doc.Right == nil {
		doc.Right = match.EmptyPlayer()
	}
	return &doc, true
}
