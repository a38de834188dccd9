package sync

import (
	"log/slog"

	"canvas-sync/internal/canvasmodel"
)

// handleUserDelta is the forward path: editor delta -> filesystem op
// (spec section 4.4.2). It is the controller's subscription to
// user-originated store deltas; remote-batch mutations never reach it.
func (c *Controller) handleUserDelta(d canvasmodel.Delta) {
	for _, shape := range d.Added {
		c.forwardAdded(shape)
	}
	for _, upd := range d.Updated {
		c.forwardUpdated(upd)
	}
	for _, id := range d.Removed {
		c.forwardRemoved(id)
	}
	c.scheduleSnapshotWrite()
	c.scheduleAnnotationPass()
}

func (c *Controller) frameDirName(parentID canvasmodel.ShapeID) string {
	if parentID == "" {
		return ""
	}
	p, ok := c.paths.ShapeToPath(parentID)
	if !ok {
		return ""
	}
	return string(p)
}

func (c *Controller) forwardAdded(shape canvasmodel.Shape) {
	switch shape.Kind {
	case canvasmodel.ShapeNamedText:
		parent := c.frameDirName(shape.ParentID)
		desired := canvasmodel.NameToTextPath(parent, shape.Name)
		final := c.paths.EnsureUniquePath(desired, "")
		if final != desired {
			c.renameShapeToMatchPath(shape.ID, final)
		}
		if err := c.paths.Assign(shape.ID, final); err != nil {
			slog.Error("sync: forward add: assign failed", "component", "sync", "error", err)
			return
		}
		content := shape.Text
		if err := c.watcher.WriteText(string(final), content); err != nil {
			slog.Error("sync: forward add: write failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{
			Action: canvasmodel.CanvasCreate, ShapeType: shape.Kind, Path: final, Content: &content,
		})

	case canvasmodel.ShapeFrame:
		desired := canvasmodel.RelPath(shape.Name)
		final := c.paths.EnsureUniquePath(desired, "")
		if final != desired {
			c.renameShapeToMatchPath(shape.ID, final)
		}
		if err := c.paths.Assign(shape.ID, final); err != nil {
			slog.Error("sync: forward add: assign frame failed", "component", "sync", "error", err)
			return
		}
		if err := c.watcher.Mkdir(string(final)); err != nil {
			slog.Error("sync: forward add: mkdir failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasCreate, ShapeType: shape.Kind, Path: final})

	case canvasmodel.ShapeImage:
		// The shape exists before its asset upload resolves; the path
		// mapping is registered once bindImageAsset sees a real AssetID.
		c.bindImageAsset(c.bgCtx, shape.ID)
	}
}

// renameShapeToMatchPath renames shape's Name property, inside a
// remote batch, to match a deduped path so name and path stay in
// agreement (spec 4.4.2, "pick the deduped path and ... rename the
// shape's name so the editor mirrors the final stored name").
func (c *Controller) renameShapeToMatchPath(id canvasmodel.ShapeID, final canvasmodel.RelPath) {
	newName := final.Stem()
	c.remoteBatch(func(tx canvasmodel.Tx) {
		tx.Update(id, func(s *canvasmodel.Shape) {
			s.Name = newName
		})
	})
}

func (c *Controller) forwardUpdated(u canvasmodel.ShapeUpdate) {
	shape := u.Shape
	oldPath, hadPath := c.paths.ShapeToPath(shape.ID)

	switch {
	case u.ParentChanged && (shape.Kind == canvasmodel.ShapeNamedText || shape.Kind == canvasmodel.ShapeImage):
		if !hadPath {
			return
		}
		parent := c.frameDirName(shape.ParentID)
		var newPath canvasmodel.RelPath
		if shape.Kind == canvasmodel.ShapeNamedText {
			newPath = canvasmodel.NameToTextPath(parent, shape.Name)
		} else {
			ext := oldPath.Ext()
			if parent == "" {
				newPath = canvasmodel.RelPath(shape.Name + ext)
			} else {
				newPath = canvasmodel.RelPath(parent + "/" + shape.Name + ext)
			}
		}
		final := c.paths.EnsureUniquePath(newPath, oldPath)
		if err := c.paths.Rename(oldPath, final); err != nil {
			slog.Error("sync: forward move: rename failed", "component", "sync", "error", err)
			return
		}
		if err := c.watcher.Rename(string(oldPath), string(final)); err != nil {
			slog.Error("sync: forward move: fs rename failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasMove, ShapeType: shape.Kind, Path: final, OldPath: oldPath})

	case u.NameChanged && shape.Kind == canvasmodel.ShapeNamedText:
		if !hadPath {
			return
		}
		parent := oldPath.Dir()
		desired := canvasmodel.NameToTextPath(parent, shape.Name)
		final := c.paths.EnsureUniquePath(desired, oldPath)
		if final != desired {
			c.renameShapeToMatchPath(shape.ID, final)
		}
		if err := c.paths.Rename(oldPath, final); err != nil {
			slog.Error("sync: forward rename: rename failed", "component", "sync", "error", err)
			return
		}
		if err := c.watcher.Rename(string(oldPath), string(final)); err != nil {
			slog.Error("sync: forward rename: fs rename failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasRename, ShapeType: shape.Kind, Path: final, OldPath: oldPath})

	case u.NameChanged && shape.Kind == canvasmodel.ShapeFrame:
		if !hadPath {
			return
		}
		desired := canvasmodel.RelPath(shape.Name)
		final := c.paths.EnsureUniquePath(desired, oldPath)
		if err := c.paths.Rename(oldPath, final); err != nil {
			slog.Error("sync: forward frame rename: rename failed", "component", "sync", "error", err)
			return
		}
		c.paths.FrameRenamed(string(oldPath), string(final))
		if err := c.watcher.Rename(string(oldPath), string(final)); err != nil {
			slog.Error("sync: forward frame rename: fs rename failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasRename, ShapeType: shape.Kind, Path: final, OldPath: oldPath})

	case u.TextChanged && shape.Kind == canvasmodel.ShapeNamedText:
		if !hadPath {
			return
		}
		content := shape.Text
		if err := c.watcher.WriteText(string(oldPath), content); err != nil {
			slog.Error("sync: forward update: write failed", "component", "sync", "error", err)
			return
		}
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasUpdate, ShapeType: shape.Kind, Path: oldPath, Content: &content})
	}
}

func (c *Controller) forwardRemoved(id canvasmodel.ShapeID) {
	path, ok := c.paths.ShapeToPath(id)
	if !ok {
		return
	}
	c.paths.Forget(id)
	if err := c.watcher.Delete(string(path)); err != nil {
		slog.Error("sync: forward delete: failed", "component", "sync", "error", err)
	}
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasDelete, Path: path})

	if ann, ok := c.annotated[path]; ok {
		_ = ann
		annPath := annotatedPathFor(path)
		_ = c.watcher.Delete(string(annPath))
		delete(c.annotated, path)
		c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasDelete, Path: annPath})
	}
}
