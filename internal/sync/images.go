package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"canvas-sync/internal/canvasmodel"
)

// bindImageAsset implements the upload-originated half of spec 4.4.6:
// the editor created an image shape from a pasted/dropped asset that
// the (out of scope) asset pipeline is uploading in the background.
// The controller polls until the shape's AssetID is non-empty, then
// hands off to finishImageBind. If the asset never resolves within
// ImagePollMaxTries attempts, the shape is left un-synced rather than
// failing the whole batch. finishImageBind fetches the bytes through
// fetchAssetBytes, which always returns an error in this package, so
// no file is written and no PathMap entry is registered for an
// editor-originated image.
func (c *Controller) bindImageAsset(ctx context.Context, shapeID canvasmodel.ShapeID) {
	go func() {
		for try := 0; try < canvasmodel.ImagePollMaxTries; try++ {
			shape, ok := c.store.Shape(shapeID)
			if !ok {
				return // deleted before the asset resolved
			}
			if shape.AssetID != "" {
				c.finishImageBind(ctx, shape)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(canvasmodel.ImagePollInterval):
			}
		}
		slog.Warn("sync: image asset never resolved", "component", "sync", "shape", shapeID)
	}()
}

func (c *Controller) finishImageBind(ctx context.Context, shape canvasmodel.Shape) {
	if c.uploader == nil {
		return
	}
	parent := c.frameDirName(shape.ParentID)
	ext := extFromAssetRef(shape.AssetID)
	name := shape.Name
	if name == "" {
		name = "image"
	}
	desired := canvasmodel.RelPath(joinDir(parent, name+ext))
	final := c.paths.EnsureUniquePath(desired, "")

	data, err := fetchAssetBytes(ctx, c.uploader, shape.AssetID)
	if err != nil {
		slog.Error("sync: image bind: fetch failed", "component", "sync", "error", err)
		return
	}
	if err := c.watcher.WriteBinary(string(final), data); err != nil {
		slog.Error("sync: image bind: write failed", "component", "sync", "error", err)
		return
	}
	if err := c.paths.Assign(shape.ID, final); err != nil {
		slog.Error("sync: image bind: assign failed", "component", "sync", "error", err)
		return
	}
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasCreate, ShapeType: canvasmodel.ShapeImage, Path: final})
	c.scheduleSnapshotWrite()
}

// fetchAssetBytes is a seam over the (out of scope) asset store; the
// Uploader interface only models the upload direction, so binding an
// already-uploaded asset back to bytes is left to whatever concrete
// store implements canvasmodel.Uploader in a given deployment.
func fetchAssetBytes(_ context.Context, _ canvasmodel.Uploader, _ string) ([]byte, error) {
	return nil, fmt.Errorf("sync: asset fetch not wired for this store")
}

func extFromAssetRef(ref string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i:]
	}
	return ".png"
}

func joinDir(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// createImageFromFS implements the filesystem-originated half of spec
// 4.4.6: a new image file appeared on disk. The shape is created via a
// remote batch, decoded for its natural dimensions (clamped to
// MaxImageDisplayDim), uploaded through the Uploader, and placed via
// the normal root/frame layout policy.
func (c *Controller) createImageFromFS(ctx context.Context, e canvasmodel.FSEvent, parentID canvasmodel.ShapeID) {
	if existingID, known := c.paths.PathToShape(e.Path); known && c.shapePendingDelete(existingID) {
		return
	}
	if c.decoder == nil || c.uploader == nil {
		slog.Warn("sync: image create skipped, no decoder/uploader wired", "component", "sync", "path", e.Path)
		return
	}
	w, h, err := c.decoder.Dimensions(ctx, string(e.Path))
	if err != nil {
		slog.Error("sync: image decode failed, using placeholder size", "component", "sync", "error", err, "path", e.Path)
		w, h = canvasmodel.PlaceholderImageWidth, canvasmodel.PlaceholderImageHeight
	}
	dw, dh := clampDims(w, h, canvasmodel.MaxImageDisplayDim)

	var data []byte
	if e.Content != nil {
		data = []byte(*e.Content)
	}
	src, err := c.uploader.Upload(ctx, data, e.Path.Base())
	if err != nil {
		slog.Error("sync: image upload failed", "component", "sync", "error", err, "path", e.Path)
		return
	}

	var x, y float64
	if parentID == "" {
		x, y = c.placeRoot(dw, dh)
	} else {
		x, y = c.placeInFrame(parentID, dw, dh)
	}

	var newID canvasmodel.ShapeID
	c.remoteBatch(func(tx canvasmodel.Tx) {
		newID = canvasmodel.ShapeID(fmt.Sprintf("shape:%s", e.Path))
		tx.Create(canvasmodel.Shape{
			ID: newID, Kind: canvasmodel.ShapeImage, ParentID: parentID,
			X: x, Y: y, W: dw, H: dh, Name: e.Path.Stem(), AssetID: src,
		})
	})
	if err := c.paths.Assign(newID, e.Path); err != nil {
		slog.Error("sync: image create: assign failed", "component", "sync", "error", err)
	}
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasCreate, ShapeType: canvasmodel.ShapeImage, Path: e.Path})
}

// applyImageModify implements the filesystem-originated modify half of
// spec 4.4.6: an image file already bound to a shape changed on disk.
// Dimensions are recomputed (the file may have been replaced with a
// different-sized image) and the asset is rebound through the same
// Uploader path createImageFromFS uses, with the resulting src
// cache-busted by mtime so the editor's <img> doesn't serve a stale
// copy of the unchanged-looking URL.
func (c *Controller) applyImageModify(ctx context.Context, e canvasmodel.FSEvent) {
	id, ok := c.paths.PathToShape(e.Path)
	if !ok || c.shapePendingDelete(id) {
		return
	}
	if c.decoder == nil || c.uploader == nil {
		slog.Warn("sync: image modify skipped, no decoder/uploader wired", "component", "sync", "path", e.Path)
		return
	}

	w, h, err := c.decoder.Dimensions(ctx, string(e.Path))
	if err != nil {
		slog.Error("sync: image modify: decode failed", "component", "sync", "error", err, "path", e.Path)
		return
	}
	dw, dh := clampDims(w, h, canvasmodel.MaxImageDisplayDim)

	var data []byte
	if e.Content != nil {
		data = []byte(*e.Content)
	}
	src, err := c.uploader.Upload(ctx, data, e.Path.Base())
	if err != nil {
		slog.Error("sync: image modify: upload failed", "component", "sync", "error", err, "path", e.Path)
		return
	}
	var mtime int64
	if e.MTimeMs != nil {
		mtime = *e.MTimeMs
	}
	src = imageCacheBustSrc(src, mtime)

	c.remoteBatch(func(tx canvasmodel.Tx) {
		tx.Update(id, func(s *canvasmodel.Shape) {
			s.W, s.H = dw, dh
			s.AssetID = src
		})
	})
	c.recordCanvasChange(canvasmodel.CanvasSyncChange{Action: canvasmodel.CanvasUpdate, Path: e.Path})
}

func clampDims(w, h int, maxDim float64) (float64, float64) {
	fw, fh := float64(w), float64(h)
	if fw <= 0 || fh <= 0 {
		return canvasmodel.PlaceholderImageWidth, canvasmodel.PlaceholderImageHeight
	}
	longest := fw
	if fh > longest {
		longest = fh
	}
	if longest <= maxDim {
		return fw, fh
	}
	scale := maxDim / longest
	return fw * scale, fh * scale
}

// clampOversizedImages is run once at startup (spec 4.4.7, post
// reconcile/bootstrap): any image shape whose dimensions exceed
// MaxImageDisplayDim on either axis is scaled down in place, preserving
// aspect ratio. This repairs state left over from a prior run of a
// client using a different display cap.
func (c *Controller) clampOversizedImages() {
	for _, s := range c.store.AllShapes() {
		if s.Kind != canvasmodel.ShapeImage {
			continue
		}
		if s.W <= canvasmodel.MaxImageDisplayDim && s.H <= canvasmodel.MaxImageDisplayDim {
			continue
		}
		nw, nh := clampDims(int(s.W), int(s.H), canvasmodel.MaxImageDisplayDim)
		id := s.ID
		c.remoteBatch(func(tx canvasmodel.Tx) {
			tx.Update(id, func(s *canvasmodel.Shape) {
				s.W, s.H = nw, nh
			})
		})
	}
}

// imageCacheBustSrc appends a cache-busting query derived from the
// file's mtime so the editor's <img> reload picks up an on-disk
// modification instead of serving a cached copy of the same src URL
// (spec 4.4.6, "modification").
func imageCacheBustSrc(src string, mtimeMs int64) string {
	if src == "" {
		return src
	}
	sep := "?"
	if strings.Contains(src, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sv=%d", src, sep, mtimeMs)
}
