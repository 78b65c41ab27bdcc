package watch

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies an OS filesystem event into the vocabulary
// ServerState's transition table expects (spec.md §4.6).
type EventKind int

const (
	Created EventKind = iota
	Deleted
	Changed
)

// Event is one debounced, classified filesystem change.
type Event struct {
	Path string
	Kind EventKind
}

// Handler receives debounced watch events, one call per path per
// debounce window.
type Handler func(Event)

type pendingEvent struct {
	kind EventKind
	at   time.Time
}

// OSWatcher adapts fsnotify's raw, noisy event stream into the debounced
// Created/Deleted/Changed vocabulary the core consumes. Grounded on the
// teacher's pkg/index/watcher.go: a stopCh/running/mutex start-stop
// lifecycle, and a pending-map-with-mutex debounce, adapted from
// "reindex on write" to "classify and forward."
type OSWatcher struct {
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   map[string]pendingEvent
}

// NewOSWatcher builds an OSWatcher that calls handler for each debounced
// event, coalescing rapid successive changes to the same path within
// debounce.
func NewOSWatcher(handler Handler, debounce time.Duration) (*OSWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &OSWatcher{
		fsw:      fsw,
		handler:  handler,
		debounce: debounce,
		pending:  make(map[string]pendingEvent),
	}, nil
}

// AddRoot recursively registers every directory under root with the
// underlying fsnotify watcher (fsnotify watches directories, not trees).
func (w *OSWatcher) AddRoot(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == ".git" || base == "node_modules" {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start begins processing fsnotify events in the background. Calling
// Start on an already-running watcher is a no-op.
func (w *OSWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	go w.processEvents()
	go w.processDebounced()
}

// IsRunning reports whether Start has been called without a matching Stop.
func (w *OSWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stop halts event processing and closes the underlying fsnotify
// watcher. Safe to call on a non-running watcher.
func (w *OSWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.fsw.Close()
}

func (w *OSWatcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.recordPending(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *OSWatcher) recordPending(ev fsnotify.Event) {
	var kind EventKind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Created
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = Deleted
	case ev.Op&fsnotify.Write != 0:
		kind = Changed
	default:
		return
	}

	w.pendingMu.Lock()
	w.pending[ev.Name] = pendingEvent{kind: kind, at: time.Now()}
	w.pendingMu.Unlock()
}

func (w *OSWatcher) processDebounced() {
	interval := w.debounce / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending delivers every pending event older than the debounce
// window, in path-sorted order so a burst of simultaneous changes
// (e.g. a git checkout touching many files) is reported deterministically.
func (w *OSWatcher) flushPending() {
	cutoff := time.Now().Add(-w.debounce)

	w.pendingMu.Lock()
	ready := make(map[string]EventKind)
	for path, pe := range w.pending {
		if pe.at.Before(cutoff) {
			ready[path] = pe.kind
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	if len(ready) == 0 {
		return
	}
	paths := make([]string, 0, len(ready))
	for p := range ready {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		w.handler(Event{Path: p, Kind: ready[p]})
	}
}
