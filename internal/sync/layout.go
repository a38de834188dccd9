package sync

import (
	"canvas-sync/internal/canvasmodel"
)

// Viewport is the minimal window-into-the-canvas information the
// layout policies need. The real viewport is owned by the (out of
// scope) editor UI; the controller is handed the current value
// whenever it needs to place a new root-level shape.
type Viewport struct {
	X, Y, W, H float64
}

// SetViewport updates the controller's notion of the currently visible
// viewport, used only by the root placement policy (spec 4.4.5).
func (c *Controller) SetViewport(v Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
}

type box struct{ x, y, w, h float64 }

func (b box) overlaps(o box) bool {
	return b.x < o.x+o.w && b.x+b.w > o.x && b.y < o.y+o.h && b.y+b.h > o.y
}

// placeRoot implements spec 4.4.5's root placement policy: prefer the
// first non-overlapping candidate on a row to the right of the
// viewport-visible cluster at the top y-coordinate of visible shapes;
// if the canvas is empty, center on the current viewport; otherwise
// scan right in SHAPE_SPACING increments up to 50 attempts.
func (c *Controller) placeRoot(width, height float64) (x, y float64) {
	var top []canvasmodel.Shape
	for _, s := range c.store.AllShapes() {
		if s.ParentID == "" {
			top = append(top, s)
		}
	}
	vp := c.viewport

	if len(top) == 0 {
		return vp.X + vp.W/2 - width/2, vp.Y + vp.H/2 - height/2
	}

	topY := top[0].Y
	for _, s := range top {
		if s.Y < topY {
			topY = s.Y
		}
	}

	startX := vp.X + vp.W
	candidate := box{x: startX, y: topY, w: width, h: height}
	for i := 0; i < canvasmodel.RootPlacementMaxTry; i++ {
		ok := true
		for _, s := range top {
			if candidate.overlaps(box{s.X, s.Y, shapeW(s), shapeH(s)}) {
				ok = false
				break
			}
		}
		if ok {
			return candidate.x, candidate.y
		}
		candidate.x += width + canvasmodel.ShapeSpacing
	}
	return candidate.x, candidate.y
}

// placeInFrame implements spec 4.4.5's frame placement policy: a grid
// of at most FrameMaxCellsPerRow cells per row, cell size = max
// child width/height + ShapeSpacing, origin =
// (FrameInnerPadding, FrameHeaderOffset). Falls back to appending a
// new row after FramePlacementMaxTry probes.
func (c *Controller) placeInFrame(frameID canvasmodel.ShapeID, width, height float64) (x, y float64) {
	var children []canvasmodel.Shape
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	for _, s := range c.store.AllShapes() {
		if s.ParentID == frameID {
			children = append(children, s)
			d := shapeW(s)
			if shapeH(s) > d {
				d = shapeH(s)
			}
			if d > maxDim {
				maxDim = d
			}
		}
	}
	cell := maxDim + canvasmodel.ShapeSpacing

	occupied := func(col, row int) bool {
		cx := canvasmodel.FrameInnerPadding + float64(col)*cell
		cy := canvasmodel.FrameHeaderOffset + float64(row)*cell
		candidate := box{cx, cy, width, height}
		for _, s := range children {
			if candidate.overlaps(box{s.X, s.Y, shapeW(s), shapeH(s)}) {
				return true
			}
		}
		return false
	}

	tries := 0
	row := 0
	for {
		for col := 0; col < canvasmodel.FrameMaxCellsPerRow; col++ {
			tries++
			if tries > canvasmodel.FramePlacementMaxTry {
				return canvasmodel.FrameInnerPadding, canvasmodel.FrameHeaderOffset + float64(row+1)*cell
			}
			if !occupied(col, row) {
				return canvasmodel.FrameInnerPadding + float64(col)*cell, canvasmodel.FrameHeaderOffset + float64(row)*cell
			}
		}
		row++
	}
}

func shapeW(s canvasmodel.Shape) float64 {
	if s.W > 0 {
		return s.W
	}
	if s.Kind == canvasmodel.ShapeFrame {
		return canvasmodel.DefaultFrameWidth
	}
	return canvasmodel.DefaultWidth
}

func shapeH(s canvasmodel.Shape) float64 {
	if s.H > 0 {
		return s.H
	}
	if s.Kind == canvasmodel.ShapeFrame {
		return canvasmodel.DefaultFrameHeight
	}
	return canvasmodel.DefaultWidth
}
