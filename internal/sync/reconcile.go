package sync

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"canvas-sync/internal/canvasmodel"
)

// reconcile implements spec 4.4.7's startup reconciliation: a prior
// snapshot was restored, so the PathMap already has shape<->path
// pairs. Walk what's actually on disk now and repair drift: shapes
// whose path no longer exists are deleted, files with no shape are
// created, and text shapes whose disk content diverges from the
// restored shape's text lose: disk wins.
func (c *Controller) reconcile(ctx context.Context, files []canvasmodel.FSEvent) {
	onDisk := make(map[canvasmodel.RelPath]canvasmodel.FSEvent, len(files))
	for _, f := range files {
		onDisk[f.Path] = f
	}

	for _, path := range c.paths.KnownPaths() {
		id, hadShape := c.paths.PathToShape(path)
		if !hadShape {
			continue
		}
		if _, exists := onDisk[path]; !exists {
			c.paths.Forget(id)
			c.remoteBatch(func(tx canvasmodel.Tx) { tx.Delete(id) })
			c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasDelete, Path: path})
		}
	}

	sorted := make([]canvasmodel.FSEvent, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].IsDirectory != sorted[j].IsDirectory {
			return sorted[i].IsDirectory // directories (frames) first
		}
		return len(sorted[i].Path) < len(sorted[j].Path)
	})

	for _, f := range sorted {
		if isAnnotatedExportPath(f.Path) {
			continue
		}
		id, known := c.paths.PathToShape(f.Path)
		if !known {
			c.remoteBatch(func(tx canvasmodel.Tx) { c.applySyncCreate(tx, f) })
			continue
		}
		if f.IsDirectory || f.Content == nil {
			continue
		}
		shape, ok := c.store.Shape(id)
		if !ok || shape.Kind != canvasmodel.ShapeNamedText {
			continue
		}
		if shape.Text != *f.Content {
			diffSummary(shape.Text, *f.Content, f.Path)
			c.remoteBatch(func(tx canvasmodel.Tx) {
				tx.Update(id, func(s *canvasmodel.Shape) { s.Text = *f.Content })
			})
			c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasUpdate, Path: f.Path, Content: f.Content})
		}
	}

	for _, f := range sorted {
		if f.IsDirectory || isAnnotatedExportPath(f.Path) {
			continue
		}
		if canvasmodel.RelPath(f.Path).Kind(false) != canvasmodel.KindImage {
			continue
		}
		if _, known := c.paths.PathToShape(f.Path); known {
			continue
		}
		c.createImageFromFS(ctx, f, c.parentForPath(f.Path))
	}
}

// RunPeriodicReconcile re-runs the startup reconciliation logic
// against a fresh directory scan. It is the safety net behind the
// cron schedule configured by config.Config.ReconcileCron: debounced
// watch events can in principle be lost (a watcher restart, an
// overflowed OS event queue), so a periodic full reconcile repairs any
// drift that slipped past the live watch path.
func (c *Controller) RunPeriodicReconcile(ctx context.Context, files []canvasmodel.FSEvent) {
	for _, f := range files {
		c.paths.SetKnown(f.Path, canvasmodel.KnownMeta{
			Size: f.Size, MTimeMs: f.MTimeMs, Content: f.Content, IsDirectory: f.IsDirectory,
		})
	}
	c.reconcile(ctx, files)
	c.scheduleSnapshotWrite()
}

// bootstrap implements spec 4.4.7's cold-start path: no snapshot
// exists, so every file on disk becomes a fresh shape. Frames are
// created before the files inside them so parent lookups succeed, and
// images are created last since they run through the async upload
// pipeline.
func (c *Controller) bootstrap(ctx context.Context, files []canvasmodel.FSEvent) {
	var frames, texts, images []canvasmodel.FSEvent
	for _, f := range files {
		if isAnnotatedExportPath(f.Path) {
			continue
		}
		switch {
		case f.IsDirectory:
			frames = append(frames, f)
		case canvasmodel.RelPath(f.Path).Kind(false) == canvasmodel.KindImage:
			images = append(images, f)
		default:
			texts = append(texts, f)
		}
	}
	sort.Slice(frames, func(i, j int) bool { return len(frames[i].Path) < len(frames[j].Path) })

	c.remoteBatch(func(tx canvasmodel.Tx) {
		for _, f := range frames {
			c.applySyncCreate(tx, f)
		}
		for _, f := range texts {
			c.applySyncCreate(tx, f)
		}
	})

	for _, f := range images {
		c.createImageFromFS(ctx, f, c.parentForPath(f.Path))
	}
}

// diffSummary logs a short diagnostic diff when reconciliation
// overwrites a restored shape's text with the on-disk version, so a
// human can see what changed while the app wasn't running.
func diffSummary(oldText, newText string, path canvasmodel.RelPath) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	slog.Info("sync: reconcile: disk wins on text diff", "component", "sync", "path", path, "diff", dmp.DiffPrettyText(diffs))
}
