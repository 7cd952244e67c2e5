package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// storagePollInterval backs up filesystem notifications. Atomic renames are
// reported unevenly across platforms, so the watcher also re-reads the slot
// on a timer and compares raw bytes.
const storagePollInterval = 800 * time.Millisecond

// FileWatcher turns changes of the persisted storage slot into full-state
// envelopes. It is the fallback delivery path when no live socket exists
// between surfaces.
type FileWatcher struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	lastRaw  []byte
	handlers []Handler
}

// NewFileWatcher watches the slot file at path.
func NewFileWatcher(path string, logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWatcher{path: path, logger: logger}
}

// Subscribe registers h for every observed change.
func (w *FileWatcher) Subscribe(h Handler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Run watches until ctx is done. The current slot content is swallowed on
// startup so only subsequent writes are delivered.
func (w *FileWatcher) Run(ctx context.Context) error {
	if raw, err := os.ReadFile(w.path); err == nil {
		w.mu.Lock()
		w.lastRaw = raw
		w.mu.Unlock()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory, not the file: the slot is replaced by rename and
	// a watch on the old inode goes stale after the first write.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ticker := time.NewTicker(storagePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.path) {
				w.check()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("storage watch error", zap.Error(err))
		case <-ticker.C:
			w.check()
		}
	}
}

// check re-reads the slot and dispatches when the raw bytes changed and
// decode as a usable envelope payload. Malformed content is skipped without
// disturbing subscribers.
func (w *FileWatcher) check() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	if bytes.Equal(raw, w.lastRaw) {
		w.mu.Unlock()
		return
	}
	w.lastRaw = raw
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	env, ok := decodeSlot(raw)
	if !ok {
		w.logger.Debug("skipping malformed storage slot content")
		return
	}
	for _, h := range handlers {
		h(env)
	}
}

// decodeSlot interprets slot content. The slot holds a bare document, not an
// envelope, so it always maps to a full-state message with no origin.
func decodeSlot(raw []byte) (Envelope, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Envelope{}, false
	}
	return Envelope{Type: MessageFullState, Payload: trimmed}, true
}
