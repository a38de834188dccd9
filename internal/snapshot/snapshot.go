// Package snapshot implements the SnapshotStore: it persists the
// editor's opaque snapshot plus the shape->path mapping under the
// sentinel file in the workspace, debounced write-through. See spec
// section 4.3.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"canvas-sync/internal/canvasmodel"
)

// Document is the sentinel file schema.
type Document struct {
	Version     int                                      `json:"version"`
	Tldraw      json.RawMessage                           `json:"tldraw"`
	ShapeToFile map[canvasmodel.ShapeID]canvasmodel.RelPath `json:"shapeToFile"`
}

const schemaVersion = 1

// FileIO is the narrow dependency the store needs from the watcher:
// raw sentinel-file read/write, already ignore-marked on the write
// side so persisting never self-triggers.
type FileIO interface {
	ReadCanvasJSON() ([]byte, error)
	WriteCanvasJSON(data []byte) error
}

// Store is the SnapshotStore of spec section 4.3.
type Store struct {
	io FileIO

	mu      sync.Mutex
	pending *Document
	timer   *time.Timer
	debounce time.Duration
}

// New returns a Store backed by io, debouncing writes by
// canvasmodel.SnapshotDebounce.
func New(io FileIO) *Store {
	return &Store{io: io, debounce: canvasmodel.SnapshotDebounce}
}

// WithDebounce overrides the write-through debounce window (used by
// tests).
func (s *Store) WithDebounce(d time.Duration) *Store {
	s.debounce = d
	return s
}

// Load reads the sentinel file. On corruption (parse failure) or
// absence, it returns (nil, false, nil): the controller then
// bootstraps from the filesystem as if fresh, per spec section 4.3.
func (s *Store) Load() (*Document, bool, error) {
	raw, err := s.io.ReadCanvasJSON()
	if err != nil {
		return nil, false, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("snapshot: sentinel file corrupt, treating as absent", "component", "snapshot", "error", err)
		return nil, false, nil
	}
	if doc.ShapeToFile == nil {
		doc.ShapeToFile = make(map[canvasmodel.ShapeID]canvasmodel.RelPath)
	}
	return &doc, true, nil
}

// ScheduleWrite queues tldrawSnapshot+shapeToFile for a debounced
// write-through, replacing any pending write that hasn't fired yet.
// Called whenever the sync controller observes a converged state.
func (s *Store) ScheduleWrite(tldraw any, shapeToFile map[canvasmodel.ShapeID]canvasmodel.RelPath) {
	raw, err := json.Marshal(tldraw)
	if err != nil {
		slog.Error("snapshot: failed to marshal editor snapshot", "component", "snapshot", "error", err)
		return
	}
	doc := &Document{Version: schemaVersion, Tldraw: raw, ShapeToFile: copyMapping(shapeToFile)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = doc
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flush)
}

func (s *Store) flush() {
	s.mu.Lock()
	doc := s.pending
	s.pending = nil
	s.mu.Unlock()
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		slog.Error("snapshot: failed to marshal sentinel document", "component", "snapshot", "error", err)
		return
	}
	if err := s.io.WriteCanvasJSON(data); err != nil {
		slog.Error("snapshot: failed to persist sentinel file", "component", "snapshot", "error", err)
	}
}

// FlushNow cancels the pending debounce timer, if any, and writes
// immediately. Used by the HTTP transport's canvas_save command; the
// controller's Dispose calls Cancel instead, discarding a pending write.
func (s *Store) FlushNow() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	doc := s.pending
	s.pending = nil
	s.mu.Unlock()
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.io.WriteCanvasJSON(data); err != nil {
		slog.Error("snapshot: failed to persist sentinel file on flush", "component", "snapshot", "error", err)
	}
}

// Cancel clears any pending debounce timer without writing. Part of
// dispose()'s "clear every single-fire timer" obligation (spec
// section 5).
func (s *Store) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

func copyMapping(in map[canvasmodel.ShapeID]canvasmodel.RelPath) map[canvasmodel.ShapeID]canvasmodel.RelPath {
	out := make(map[canvasmodel.ShapeID]canvasmodel.RelPath, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MarshalDocumentError wraps a marshal failure with a "snapshot: "
// prefix; the error is not converted into a canvasmodel.SyncError.
func MarshalDocumentError(err error) error {
	return fmt.Errorf("snapshot: %w", err)
}
