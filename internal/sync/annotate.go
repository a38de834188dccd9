package sync

import (
	"log/slog"
	"strings"
	"time"

	"canvas-sync/internal/canvasmodel"
)

// annotatedPathFor derives the on-disk path of an image's annotated
// export from the image's own path (spec 4.4.8): same directory and
// stem, AnnotatedSuffix instead of the original extension.
func annotatedPathFor(imagePath canvasmodel.RelPath) canvasmodel.RelPath {
	dir := imagePath.Dir()
	stem := imagePath.Stem()
	if dir == "." || dir == "" {
		return canvasmodel.RelPath(stem + canvasmodel.AnnotatedSuffix)
	}
	return canvasmodel.RelPath(dir + "/" + stem + canvasmodel.AnnotatedSuffix)
}

// isAnnotatedExportPath reports whether path looks like a file the
// controller itself wrote as an annotation export, so the reverse path
// can exclude it from reconciliation/creation (it is a derived
// artifact, not an authoritative source the editor should mirror).
func isAnnotatedExportPath(p canvasmodel.RelPath) bool {
	return strings.HasSuffix(string(p), canvasmodel.AnnotatedSuffix)
}

// scheduleAnnotationPass debounces a full annotation re-export
// (AnnotationDebounce) whenever a shape is added, moved, resized, or
// removed, since any of those can change which shapes overlap an
// image's bounds (spec 4.4.8).
func (c *Controller) scheduleAnnotationPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	if c.annotateTimer != nil {
		c.annotateTimer.Stop()
	}
	c.annotateTimer = time.AfterFunc(canvasmodel.AnnotationDebounce, c.runAnnotationPass)
}

func (c *Controller) runAnnotationPass() {
	if c.exporter == nil {
		return
	}
	images := map[canvasmodel.ShapeID]canvasmodel.Shape{}
	var overlays []canvasmodel.Shape
	for _, s := range c.store.AllShapes() {
		if s.Kind == canvasmodel.ShapeImage {
			images[s.ID] = s
		} else {
			overlays = append(overlays, s)
		}
	}

	for _, img := range images {
		path, ok := c.paths.ShapeToPath(img.ID)
		if !ok {
			continue
		}
		var covering []canvasmodel.ShapeID
		for _, ov := range overlays {
			if ov.ParentID != img.ParentID {
				continue
			}
			if rectsOverlap(img, ov) {
				covering = append(covering, ov.ID)
			}
		}
		annPath := annotatedPathFor(path)
		if len(covering) == 0 {
			if _, had := c.annotated[path]; had {
				if err := c.watcher.Delete(string(annPath)); err != nil {
					slog.Error("sync: annotation delete failed", "component", "sync", "error", err)
				}
				delete(c.annotated, path)
			}
			continue
		}
		ids := append(covering, img.ID)
		png, err := c.exporter.ExportPNG(c.bgCtx, ids, 1.0)
		if err != nil {
			slog.Error("sync: annotation export failed", "component", "sync", "error", err, "path", path)
			continue
		}
		if err := c.watcher.WriteBinary(string(annPath), png); err != nil {
			slog.Error("sync: annotation write failed", "component", "sync", "error", err)
			continue
		}
		c.annotated[path] = struct{}{}
	}
}

func rectsOverlap(a, b canvasmodel.Shape) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}
