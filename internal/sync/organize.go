package sync

import (
	"sort"

	"canvas-sync/internal/canvasmodel"
)

// Organize implements the organize operation (spec 4.4.9): every
// top-level shape is sorted (frames, then text, then images,
// alphabetically within each kind) and packed into rows of width
// 3*medianItemWidth; within each frame its children are grid-sorted
// text-before-image-then-name. All movement is animated via Animator
// and finishes with a zoom-to-fit.
func (c *Controller) Organize() {
	all := c.store.AllShapes()
	byParent := map[canvasmodel.ShapeID][]canvasmodel.Shape{}
	var top []canvasmodel.Shape
	for _, s := range all {
		if s.ParentID == "" {
			top = append(top, s)
		} else {
			byParent[s.ParentID] = append(byParent[s.ParentID], s)
		}
	}

	for _, frame := range top {
		if frame.Kind != canvasmodel.ShapeFrame {
			continue
		}
		c.organizeFrame(frame, byParent[frame.ID])
	}
	c.organizeTopLevel(top)
	c.store.ZoomToFit()
}

func (c *Controller) organizeFrame(frame canvasmodel.Shape, children []canvasmodel.Shape) {
	sort.Slice(children, func(i, j int) bool {
		ki, kj := children[i].Kind, children[j].Kind
		if ki != kj {
			return ki == canvasmodel.ShapeNamedText
		}
		return children[i].Name < children[j].Name
	})

	maxDim := 0.0
	for _, ch := range children {
		d := shapeW(ch)
		if shapeH(ch) > d {
			d = shapeH(ch)
		}
		if d > maxDim {
			maxDim = d
		}
	}
	cell := maxDim + canvasmodel.ShapeSpacing

	for i, ch := range children {
		col := i % canvasmodel.FrameMaxCellsPerRow
		row := i / canvasmodel.FrameMaxCellsPerRow
		x := canvasmodel.FrameInnerPadding + float64(col)*cell
		y := canvasmodel.FrameHeaderOffset + float64(row)*cell
		id := ch.ID
		c.animator.After(0, func() {
			c.remoteBatch(func(tx canvasmodel.Tx) {
				tx.Update(id, func(s *canvasmodel.Shape) { s.X, s.Y = x, y })
			})
		})
	}
}

func (c *Controller) organizeTopLevel(top []canvasmodel.Shape) {
	sort.Slice(top, func(i, j int) bool {
		ri, rj := kindRank(top[i].Kind), kindRank(top[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return top[i].Name < top[j].Name
	})
	if len(top) == 0 {
		return
	}

	widths := make([]float64, len(top))
	for i, s := range top {
		widths[i] = shapeW(s)
	}
	median := medianOf(widths)
	rowWidth := median * 3
	if rowWidth <= 0 {
		rowWidth = canvasmodel.DefaultFrameWidth * 3
	}

	x, y := 0.0, 0.0
	rowHeight := 0.0
	for _, s := range top {
		w, h := shapeW(s), shapeH(s)
		if x > 0 && x+w > rowWidth {
			x = 0
			y += rowHeight + canvasmodel.ShapeSpacing
			rowHeight = 0
		}
		px, py := x, y
		id := s.ID
		c.animator.After(0, func() {
			c.remoteBatch(func(tx canvasmodel.Tx) {
				tx.Update(id, func(sh *canvasmodel.Shape) { sh.X, sh.Y = px, py })
			})
		})
		x += w + canvasmodel.ShapeSpacing
		if h > rowHeight {
			rowHeight = h
		}
	}
}

func kindRank(k canvasmodel.ShapeKind) int {
	switch k {
	case canvasmodel.ShapeFrame:
		return 0
	case canvasmodel.ShapeNamedText:
		return 1
	case canvasmodel.ShapeImage:
		return 2
	default:
		return 3
	}
}

func medianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
