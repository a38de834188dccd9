package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/editorstore"
)

func TestPlaceRootCentersOnEmptyCanvas(t *testing.T) {
	store := editorstore.New()
	c := New(Options{Store: store, Watcher: newFakeWatcher(), Snapshot: &fakeSnapshot{}})
	c.SetViewport(Viewport{X: 0, Y: 0, W: 800, H: 600})

	x, y := c.placeRoot(200, 100)
	assert.Equal(t, 300.0, x)
	assert.Equal(t, 250.0, y)
}

func TestPlaceRootAvoidsOverlapWithExistingShapes(t *testing.T) {
	store := editorstore.New()
	require := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	require(store.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Kind: canvasmodel.ShapeNamedText, X: 800, Y: 0, W: 200, H: 100})
	}))

	c := New(Options{Store: store, Watcher: newFakeWatcher(), Snapshot: &fakeSnapshot{}})
	c.SetViewport(Viewport{X: 0, Y: 0, W: 800, H: 600})

	x, y := c.placeRoot(200, 100)
	assert.NotEqual(t, 800.0, x, "candidate overlapping the existing shape must be skipped")
	assert.Equal(t, 0.0, y)
}

func TestPlaceInFrameGridsChildren(t *testing.T) {
	store := editorstore.New()
	c := New(Options{Store: store, Watcher: newFakeWatcher(), Snapshot: &fakeSnapshot{}})

	x1, y1 := c.placeInFrame("frame:1", 100, 100)
	assert.Equal(t, float64(canvasmodel.FrameInnerPadding), x1)
	assert.Equal(t, float64(canvasmodel.FrameHeaderOffset), y1)

	_ = store.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Kind: canvasmodel.ShapeNamedText, ParentID: "frame:1", X: x1, Y: y1, W: 100, H: 100})
	})

	x2, y2 := c.placeInFrame("frame:1", 100, 100)
	assert.NotEqual(t, x1, x2)
	assert.Equal(t, y1, y2)
}
