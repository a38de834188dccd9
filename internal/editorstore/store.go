// Package editorstore is an in-memory, headless reference
// implementation of canvasmodel.Store. It backs the unit tests for
// internal/sync and the demo binary; a real deployment sits a genuine
// 2D canvas library behind the same interface instead.
package editorstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"canvas-sync/internal/canvasmodel"
)

// Store is a thread-safe, in-memory canvasmodel.Store.
type Store struct {
	mu     sync.Mutex
	shapes map[canvasmodel.ShapeID]canvasmodel.Shape
	order  []canvasmodel.ShapeID // insertion order, for deterministic AllShapes

	subsMu sync.Mutex
	subs   map[int]func(canvasmodel.Delta)
	nextID int

	zoomFitCalls int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		shapes: make(map[canvasmodel.ShapeID]canvasmodel.Shape),
		subs:   make(map[int]func(canvasmodel.Delta)),
	}
}

func (s *Store) Subscribe(fn func(canvasmodel.Delta)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

type tx struct {
	store *Store
	delta canvasmodel.Delta
}

func (t *tx) Create(sh canvasmodel.Shape) {
	t.store.mu.Lock()
	if _, exists := t.store.shapes[sh.ID]; !exists {
		t.store.order = append(t.store.order, sh.ID)
	}
	t.store.shapes[sh.ID] = sh
	t.store.mu.Unlock()
	t.delta.Added = append(t.delta.Added, sh)
}

func (t *tx) Update(id canvasmodel.ShapeID, mutate func(s *canvasmodel.Shape)) {
	t.store.mu.Lock()
	sh, ok := t.store.shapes[id]
	if !ok {
		t.store.mu.Unlock()
		return
	}
	prevParent, prevName := sh.ParentID, sh.Name
	prevText := sh.Text
	mutate(&sh)
	t.store.shapes[id] = sh
	t.store.mu.Unlock()

	t.delta.Updated = append(t.delta.Updated, canvasmodel.ShapeUpdate{
		Shape:         sh,
		ParentChanged: sh.ParentID != prevParent,
		NameChanged:   sh.Name != prevName,
		TextChanged:   sh.Text != prevText,
		PrevParentID:  prevParent,
		PrevName:      prevName,
	})
}

func (t *tx) Delete(id canvasmodel.ShapeID) {
	t.store.mu.Lock()
	if _, ok := t.store.shapes[id]; ok {
		delete(t.store.shapes, id)
		for i, sid := range t.store.order {
			if sid == id {
				t.store.order = append(t.store.order[:i], t.store.order[i+1:]...)
				break
			}
		}
	}
	t.store.mu.Unlock()
	t.delta.Removed = append(t.delta.Removed, id)
}

func (s *Store) Transact(source canvasmodel.TransactSource, fn func(canvasmodel.Tx)) error {
	t := &tx{store: s}
	fn(t)

	if source == canvasmodel.SourceUser {
		s.subsMu.Lock()
		subs := make([]func(canvasmodel.Delta), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.subsMu.Unlock()
		for _, fn := range subs {
			fn(t.delta)
		}
	}
	return nil
}

type wireSnapshot struct {
	Shapes []canvasmodel.Shape `json:"shapes"`
}

func (s *Store) Snapshot() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shapes := make([]canvasmodel.Shape, 0, len(s.order))
	for _, id := range s.order {
		shapes = append(shapes, s.shapes[id])
	}
	raw, err := json.Marshal(wireSnapshot{Shapes: shapes})
	if err != nil {
		return nil, fmt.Errorf("editorstore: snapshot marshal: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (s *Store) Restore(snapshot any) error {
	var raw json.RawMessage
	switch v := snapshot.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("editorstore: restore re-marshal: %w", err)
		}
		raw = b
	}

	var ws wireSnapshot
	if err := json.Unmarshal(raw, &ws); err != nil {
		return fmt.Errorf("editorstore: restore unmarshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes = make(map[canvasmodel.ShapeID]canvasmodel.Shape, len(ws.Shapes))
	s.order = s.order[:0]
	for _, sh := range ws.Shapes {
		s.shapes[sh.ID] = sh
		s.order = append(s.order, sh.ID)
	}
	return nil
}

func (s *Store) Shape(id canvasmodel.ShapeID) (canvasmodel.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shapes[id]
	return sh, ok
}

func (s *Store) AllShapes() []canvasmodel.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]canvasmodel.Shape, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.shapes[id])
	}
	return out
}

func (s *Store) ZoomToFit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomFitCalls++
}

// ZoomToFitCalls reports how many times ZoomToFit has been invoked,
// for test assertions.
func (s *Store) ZoomToFitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoomFitCalls
}
