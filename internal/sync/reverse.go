package sync

import (
	"log/slog"

	"canvas-sync/internal/canvasmodel"
)

// handleFSChanges is the reverse path: a debounced batch of FSEvents
// from the watcher is turned into editor mutations (spec 4.4.3). It is
// the Sink passed to watch.Watcher.Start.
func (c *Controller) handleFSChanges(batch []canvasmodel.FSEvent) {
	for _, e := range batch {
		c.recordFSEvent(e)
	}

	var (
		creates     []canvasmodel.FSEvent
		modifies    []canvasmodel.FSEvent
		deletes     []canvasmodel.FSEvent
		dirTouched  bool
	)
	for _, e := range batch {
		if isAnnotatedExportPath(e.Path) {
			continue // derived artifact, never mirrored back
		}
		switch e.Action {
		case canvasmodel.FSCreated:
			creates = append(creates, e)
			if e.IsDirectory {
				dirTouched = true
			}
		case canvasmodel.FSModified:
			modifies = append(modifies, e)
		case canvasmodel.FSDeleted:
			deletes = append(deletes, e)
			if e.IsDirectory {
				dirTouched = true
			}
		}
	}

	pairs, remDeletes, remCreates := detectMoves(deletes, creates, c.paths)
	for _, p := range pairs {
		c.applyMove(p)
	}

	var imageCreates []canvasmodel.FSEvent
	var syncCreates []canvasmodel.FSEvent
	for _, e := range remCreates {
		if !e.IsDirectory && canvasmodel.RelPath(e.Path).Kind(false) == canvasmodel.KindImage {
			imageCreates = append(imageCreates, e)
		} else {
			syncCreates = append(syncCreates, e)
		}
	}

	// Image modifications need a decode+upload round trip before any
	// shape field is known, so (like imageCreates above) they're split
	// out of the plain in-memory text-shape update transaction.
	var imageModifies []canvasmodel.FSEvent
	var textModifies []canvasmodel.FSEvent
	for _, e := range modifies {
		if !e.IsDirectory && canvasmodel.RelPath(e.Path).Kind(false) == canvasmodel.KindImage {
			imageModifies = append(imageModifies, e)
		} else {
			textModifies = append(textModifies, e)
		}
	}

	c.remoteBatch(func(tx canvasmodel.Tx) {
		for _, e := range syncCreates {
			c.applySyncCreate(tx, e)
		}
		for _, e := range textModifies {
			c.applySyncModify(tx, e)
		}
	})

	for _, e := range remDeletes {
		c.applySyncDelete(e)
	}

	for _, e := range imageCreates {
		parentID := c.parentForPath(e.Path)
		c.createImageFromFS(c.bgCtx, e, parentID)
	}
	for _, e := range imageModifies {
		c.applyImageModify(c.bgCtx, e)
	}

	c.scheduleSnapshotWrite()
	c.scheduleAnnotationPass()
	if dirTouched {
		c.store.ZoomToFit()
	}
}

// parentForPath resolves the frame shape (if any) whose directory is
// the immediate parent of path, by walking the PathMap for a directory
// entry matching path's Dir().
func (c *Controller) parentForPath(p canvasmodel.RelPath) canvasmodel.ShapeID {
	dir := p.Dir()
	if dir == "." || dir == "" {
		return ""
	}
	if id, ok := c.paths.PathToShape(canvasmodel.RelPath(dir)); ok {
		return id
	}
	return ""
}

func (c *Controller) applyMove(p movePair) {
	id, ok := c.paths.PathToShape(p.del.Path)
	if !ok || c.shapePendingDelete(id) {
		return
	}
	if err := c.paths.Rename(p.del.Path, p.create.Path); err != nil {
		slog.Error("sync: reverse move: pathmap rename failed", "component", "sync", "error", err)
		return
	}
	newParent := c.parentForPath(p.create.Path)
	shape, ok := c.store.Shape(id)
	if !ok {
		return
	}
	var x, y = shape.X, shape.Y
	if newParent != shape.ParentID {
		if newParent == "" {
			x, y = c.placeRoot(shape.W, shape.H)
		} else {
			x, y = c.placeInFrame(newParent, shape.W, shape.H)
		}
	}
	newName := p.create.Path.Stem()
	c.remoteBatch(func(tx canvasmodel.Tx) {
		tx.Update(id, func(s *canvasmodel.Shape) {
			s.ParentID = newParent
			s.Name = newName
			s.X, s.Y = x, y
		})
	})
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasMove, Path: p.create.Path, OldPath: p.del.Path})
}

func (c *Controller) applySyncCreate(tx canvasmodel.Tx, e canvasmodel.FSEvent) {
	// A racing recreate at a path whose prior shape is still fading out
	// is ignored until the delete finalizes, rather than fighting over
	// the same path's PathMap entry.
	if existingID, known := c.paths.PathToShape(e.Path); known && c.shapePendingDelete(existingID) {
		return
	}

	parentID := c.parentForPath(e.Path)

	if e.IsDirectory {
		id := canvasmodel.ShapeID("shape:" + string(e.Path))
		x, y := c.placeRoot(canvasmodel.DefaultFrameWidth, canvasmodel.DefaultFrameHeight)
		if parentID != "" {
			x, y = c.placeInFrame(parentID, canvasmodel.DefaultFrameWidth, canvasmodel.DefaultFrameHeight)
		}
		tx.Create(canvasmodel.Shape{
			ID: id, Kind: canvasmodel.ShapeFrame, ParentID: parentID,
			X: x, Y: y, W: canvasmodel.DefaultFrameWidth, H: canvasmodel.DefaultFrameHeight,
			Name: e.Path.Stem(),
		})
		if err := c.paths.Assign(id, e.Path); err != nil {
			slog.Error("sync: reverse create frame: assign failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasCreate, ShapeType: canvasmodel.ShapeFrame, Path: e.Path})
		return
	}

	if canvasmodel.RelPath(e.Path).Kind(false) != canvasmodel.KindText {
		return // non-text, non-image files with no shape counterpart are left on disk untouched
	}

	id := canvasmodel.ShapeID("shape:" + string(e.Path))
	x, y := c.placeRoot(canvasmodel.DefaultWidth, canvasmodel.DefaultWidth)
	if parentID != "" {
		x, y = c.placeInFrame(parentID, canvasmodel.DefaultWidth, canvasmodel.DefaultWidth)
	}
	content := ""
	if e.Content != nil {
		content = *e.Content
	}
	tx.Create(canvasmodel.Shape{
		ID: id, Kind: canvasmodel.ShapeNamedText, ParentID: parentID,
		X: x, Y: y, W: canvasmodel.DefaultWidth, H: canvasmodel.DefaultWidth,
		Name: e.Path.Stem(), Text: content,
	})
	if err := c.paths.Assign(id, e.Path); err != nil {
		slog.Error("sync: reverse create text: assign failed", "component", "sync", "error", err)
		return
	}
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasCreate, ShapeType: canvasmodel.ShapeNamedText, Path: e.Path, Content: &content})
}

func (c *Controller) applySyncModify(tx canvasmodel.Tx, e canvasmodel.FSEvent) {
	id, ok := c.paths.PathToShape(e.Path)
	if !ok || c.shapePendingDelete(id) {
		return
	}
	content := ""
	if e.Content != nil {
		content = *e.Content
	}
	tx.Update(id, func(s *canvasmodel.Shape) {
		if s.Kind == canvasmodel.ShapeNamedText {
			s.Text = content
		}
	})
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasUpdate, Path: e.Path, Content: &content})
}

// applySyncDelete implements spec 4.4.3 step 5: the shape is faded out
// over DeleteFadeOut, then actually removed from the store after a
// further DeleteFinalizeGap. The shape ID is held in pendingDeletes for
// the whole window so any racing event that resolves to the same shape
// (a quick recreate or move at the same path) is ignored rather than
// fighting the in-flight deletion -- see shapePendingDelete, consulted
// by applySyncModify, applyMove, applySyncCreate, createImageFromFS,
// and applyImageModify.
func (c *Controller) applySyncDelete(e canvasmodel.FSEvent) {
	id, ok := c.paths.PathToShape(e.Path)
	if !ok {
		return
	}

	c.mu.Lock()
	if _, already := c.pendingDeletes[id]; already {
		c.mu.Unlock()
		return
	}
	c.pendingDeletes[id] = struct{}{}
	c.mu.Unlock()

	c.remoteBatch(func(tx canvasmodel.Tx) {
		tx.Update(id, func(s *canvasmodel.Shape) {
			s.Opacity = 0
		})
	})

	c.animator.After(canvasmodel.DeleteFadeOut+canvasmodel.DeleteFinalizeGap, func() {
		c.finalizeDelete(id, e.Path)
	})
}

// finalizeDelete performs the actual store removal once the fade-out
// window has elapsed, and releases the shape's pendingDeletes hold.
func (c *Controller) finalizeDelete(id canvasmodel.ShapeID, path canvasmodel.RelPath) {
	c.paths.Forget(id)
	c.remoteBatch(func(tx canvasmodel.Tx) {
		tx.Delete(id)
	})
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasDelete, Path: path})

	if ann, had := c.annotated[path]; had {
		_ = ann
		delete(c.annotated, path)
	}

	c.mu.Lock()
	delete(c.pendingDeletes, id)
	c.mu.Unlock()
}

// shapePendingDelete reports whether id is mid-fade-out per
// applySyncDelete, so callers can ignore a racing event for the same
// shape instead of reviving or mutating a shape that's about to
// disappear.
func (c *Controller) shapePendingDelete(id canvasmodel.ShapeID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, pending := c.pendingDeletes[id]
	return pending
}
