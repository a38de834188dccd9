// Package pathmap implements the bijection between editor shape
// identifiers and workspace-relative paths, plus the per-path
// metadata used by the move detector. See spec section 4.1.
package pathmap

import (
	"fmt"
	"strings"
	"sync"

	"canvas-sync/internal/canvasmodel"
)

// PathMap is the bijection shape<->path described in spec sections 3
// and 4.1. It is owned exclusively by the SyncController (spec
// section 5) and is not safe for concurrent mutation from more than
// one goroutine at a time -- the mutex here only guards against
// read/write races from auxiliary goroutines (history logging,
// diagnostics) observing state the controller's single event-loop
// goroutine is mutating.
type PathMap struct {
	mu          sync.RWMutex
	shapeToPath map[canvasmodel.ShapeID]canvasmodel.RelPath
	pathToShape map[canvasmodel.RelPath]canvasmodel.ShapeID
	known       map[canvasmodel.RelPath]canvasmodel.KnownMeta
}

// New returns an empty PathMap.
func New() *PathMap {
	return &PathMap{
		shapeToPath: make(map[canvasmodel.ShapeID]canvasmodel.RelPath),
		pathToShape: make(map[canvasmodel.RelPath]canvasmodel.ShapeID),
		known:       make(map[canvasmodel.RelPath]canvasmodel.KnownMeta),
	}
}

// ShapeToPath looks up the path for a shape.
func (m *PathMap) ShapeToPath(id canvasmodel.ShapeID) (canvasmodel.RelPath, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.shapeToPath[id]
	return p, ok
}

// PathToShape looks up the shape for a path.
func (m *PathMap) PathToShape(p canvasmodel.RelPath) (canvasmodel.ShapeID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pathToShape[p]
	return id, ok
}

// HasPath reports whether p is occupied, either by a mapped shape or
// by a known filesystem entry that hasn't been assigned a shape yet.
func (m *PathMap) HasPath(p canvasmodel.RelPath) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.pathToShape[p]; ok {
		return true
	}
	_, ok := m.known[p]
	return ok
}

// Assign records shape<->path. Fails with ErrDuplicatePath if path is
// already occupied by a different shape, or if the shape already maps
// to a different path (callers that intend to change path use Rename
// instead).
func (m *PathMap) Assign(shape canvasmodel.ShapeID, path canvasmodel.RelPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pathToShape[path]; ok && existing != shape {
		return fmt.Errorf("assign %q to %q: %w", path, shape, canvasmodel.ErrDuplicatePath)
	}
	if existingPath, ok := m.shapeToPath[shape]; ok && existingPath != path {
		return fmt.Errorf("assign %q to %q: shape already mapped to %q: %w", path, shape, existingPath, canvasmodel.ErrDuplicatePath)
	}
	m.shapeToPath[shape] = path
	m.pathToShape[path] = shape
	return nil
}

// Forget removes both directions for shape. Silently succeeds if
// absent.
func (m *PathMap) Forget(shape canvasmodel.ShapeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.shapeToPath[shape]
	if !ok {
		return
	}
	delete(m.shapeToPath, shape)
	delete(m.pathToShape, path)
}

// ForgetPath removes both directions for path, if a shape maps to it.
func (m *PathMap) ForgetPath(path canvasmodel.RelPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shape, ok := m.pathToShape[path]
	if !ok {
		return
	}
	delete(m.pathToShape, path)
	delete(m.shapeToPath, shape)
}

// Rename atomically updates both maps from oldPath to newPath for
// whichever shape currently occupies oldPath. No-op if oldPath is
// unmapped.
func (m *PathMap) Rename(oldPath, newPath canvasmodel.RelPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shape, ok := m.pathToShape[oldPath]
	if !ok {
		return nil
	}
	if existing, ok := m.pathToShape[newPath]; ok && existing != shape {
		return fmt.Errorf("rename %q -> %q: %w", oldPath, newPath, canvasmodel.ErrDuplicatePath)
	}
	delete(m.pathToShape, oldPath)
	m.pathToShape[newPath] = shape
	m.shapeToPath[shape] = newPath
	return nil
}

// FrameRenamed rewrites every path starting with oldPrefix+"/" to
// start with newPrefix+"/" instead, consistently across both
// directions. Used for the frame-rename cascade (spec 4.4.2).
func (m *PathMap) FrameRenamed(oldPrefix, newPrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldP := oldPrefix + "/"
	newP := newPrefix + "/"

	type rewrite struct {
		shape canvasmodel.ShapeID
		old   canvasmodel.RelPath
		new   canvasmodel.RelPath
	}
	var rewrites []rewrite
	for path, shape := range m.pathToShape {
		s := string(path)
		if strings.HasPrefix(s, oldP) {
			newPath := canvasmodel.RelPath(newP + s[len(oldP):])
			rewrites = append(rewrites, rewrite{shape, path, newPath})
		}
	}
	for _, r := range rewrites {
		delete(m.pathToShape, r.old)
		m.pathToShape[r.new] = r.shape
		m.shapeToPath[r.shape] = r.new
	}

	var knownRewrites []rewrite
	for path, meta := range m.known {
		s := string(path)
		if strings.HasPrefix(s, oldP) {
			newPath := canvasmodel.RelPath(newP + s[len(oldP):])
			knownRewrites = append(knownRewrites, rewrite{"", path, newPath})
			_ = meta
		}
	}
	for _, r := range knownRewrites {
		meta := m.known[r.old]
		delete(m.known, r.old)
		m.known[r.new] = meta
	}
}

// EnsureUniquePath returns desired if it is not occupied; otherwise it
// returns "basename-1.ext", "basename-2.ext", ... skipping any that
// are taken, preserving the directory component. A path equal to
// reserved is treated as free, so a shape being renamed does not
// dedupe against its own current path.
func (m *PathMap) EnsureUniquePath(desired canvasmodel.RelPath, reserved canvasmodel.RelPath) canvasmodel.RelPath {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.occupiedLocked(desired, reserved) {
		return desired
	}

	dir := desired.Dir()
	ext := desired.Ext()
	stem := desired.Stem()

	for i := 1; ; i++ {
		var candidate canvasmodel.RelPath
		name := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if dir == "" {
			candidate = canvasmodel.RelPath(name)
		} else {
			candidate = canvasmodel.RelPath(dir + "/" + name)
		}
		if !m.occupiedLocked(candidate, reserved) {
			return candidate
		}
	}
}

func (m *PathMap) occupiedLocked(p, reserved canvasmodel.RelPath) bool {
	if p == reserved {
		return false
	}
	if _, ok := m.pathToShape[p]; ok {
		return true
	}
	_, ok := m.known[p]
	return ok
}

// SetKnown records/updates metadata for a filesystem-observed path,
// independent of whether it currently has a shape assigned.
func (m *PathMap) SetKnown(p canvasmodel.RelPath, meta canvasmodel.KnownMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[p] = meta
}

// Known returns the metadata for p, if any.
func (m *PathMap) Known(p canvasmodel.RelPath) (canvasmodel.KnownMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.known[p]
	return meta, ok
}

// ForgetKnown removes path metadata (used on delete).
func (m *PathMap) ForgetKnown(p canvasmodel.RelPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.known, p)
}

// KnownPaths returns a snapshot slice of every path the map has seen,
// whether or not it currently has a shape.
func (m *PathMap) KnownPaths() []canvasmodel.RelPath {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[canvasmodel.RelPath]struct{}, len(m.known)+len(m.pathToShape))
	for p := range m.known {
		seen[p] = struct{}{}
	}
	for p := range m.pathToShape {
		seen[p] = struct{}{}
	}
	out := make([]canvasmodel.RelPath, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// Pairs returns a snapshot of every (shape, path) pair currently
// bijected. Used by invariant checks and by reconciliation.
func (m *PathMap) Pairs() map[canvasmodel.ShapeID]canvasmodel.RelPath {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[canvasmodel.ShapeID]canvasmodel.RelPath, len(m.shapeToPath))
	for k, v := range m.shapeToPath {
		out[k] = v
	}
	return out
}

// CheckInvariants verifies the bijection property: every (s,p) maps
// consistently in both directions and no path/shape is duplicated.
// Intended for debug builds per spec 4.1; production callers may skip
// it on the hot path and call it only from tests/diagnostics.
func (m *PathMap) CheckInvariants() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.shapeToPath) != len(m.pathToShape) {
		return fmt.Errorf("pathmap: %w: size mismatch shape->path=%d path->shape=%d",
			canvasmodel.ErrBijectionViolation, len(m.shapeToPath), len(m.pathToShape))
	}
	for s, p := range m.shapeToPath {
		back, ok := m.pathToShape[p]
		if !ok || back != s {
			return fmt.Errorf("pathmap: %w: shape %q -> path %q does not round-trip", canvasmodel.ErrBijectionViolation, s, p)
		}
	}
	return nil
}
